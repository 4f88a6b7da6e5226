package token2022

import (
	"github.com/gagliardetto/solana-go"
)

var (
	MintLayoutSize     = 82
	AccountLayoutSize  = 165
	MultisigLayoutSize = 355
	AccountTypeSize    = 1
	TLVTypeSize        = 2
	TLVLengthSize      = 2
)

type AccountType uint8

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

type AccountState uint8

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

func (s AccountState) String() string {
	switch s {
	case AccountStateUninitialized:
		return "uninitialized"
	case AccountStateInitialized:
		return "initialized"
	case AccountStateFrozen:
		return "frozen"
	}
	return "unknown"
}

type MintLayout struct {
	MintAuthorityOption   [4]byte
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              byte
	IsInitialized         uint8
	FreezeAuthorityOption [4]byte
	FreezeAuthority       solana.PublicKey
}

type TransferFee struct {
	Epoch                  uint64
	MaximumFee             uint64
	TransferFeeBasisPoints uint16
}

// TransferFeeConfigLayout is the value of a TransferFeeConfig TLV entry.
// A zero authority means the authority is unset.
type TransferFeeConfigLayout struct {
	TransferFeeConfigAuthority solana.PublicKey
	WithdrawWithheldAuthority  solana.PublicKey
	WithheldAmount             uint64
	OlderTransferFee           TransferFee
	NewerTransferFee           TransferFee
}

type TransferFeeAmountLayout struct {
	WithheldAmount uint64
}

type AccountLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                AccountState
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

type KeyedAccount struct {
	Key    solana.PublicKey
	Height uint64
	AccountLayout
	Extensions map[ExtensionType][]byte
}

type KeyedMint struct {
	Key    solana.PublicKey
	Height uint64
	MintLayout
	Extensions map[ExtensionType][]byte
}

func (m *KeyedMint) HasExtension(t ExtensionType) bool {
	_, ok := m.Extensions[t]
	return ok
}
