package backend

import (
	"github.com/gagliardetto/solana-go"
)

type Wallet struct {
	pubkey solana.PublicKey
	prikey solana.PrivateKey
}

func (backend *Backend) AddWallet(pri solana.PrivateKey) {
	pub := pri.PublicKey()
	for _, wallet := range backend.wallets {
		if wallet.pubkey == pub {
			return
		}
	}
	backend.wallets = append(backend.wallets, &Wallet{
		pubkey: pub,
		prikey: pri,
	})
}

// getWallet resolves a signer from the per-call extras first, then the
// imported wallets. A nil result makes signing fail for that key.
func (backend *Backend) getWallet(key solana.PublicKey, extra []solana.PrivateKey) *solana.PrivateKey {
	for i := range extra {
		if extra[i].PublicKey() == key {
			return &extra[i]
		}
	}
	for _, wallet := range backend.wallets {
		if wallet.pubkey == key {
			return &wallet.prikey
		}
	}
	return nil
}

func (backend *Backend) HasSigner(key solana.PublicKey) bool {
	return backend.getWallet(key, nil) != nil
}

func (backend *Backend) SetPlayer(player solana.PublicKey) {
	backend.player = player
}

func (backend *Backend) Player() solana.PublicKey {
	return backend.player
}
