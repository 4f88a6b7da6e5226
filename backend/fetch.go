package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	MultipleAccountSliceSize = 100
)

type Account struct {
	PubKey  solana.PublicKey
	Account *rpc.Account
	Height  uint64
}

func (backend *Backend) Accounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*Account, error) {
	accounts := make([]*Account, 0, len(pubkeys))
	index, end := 0, 0
	for index < len(pubkeys) {
		if end = index + MultipleAccountSliceSize; end > len(pubkeys) {
			end = len(pubkeys)
		}
		getMultipleAccountsRsp, err := backend.rpcClient.GetMultipleAccountsWithOpts(ctx, pubkeys[index:end],
			&rpc.GetMultipleAccountsOpts{Encoding: solana.EncodingBase64, Commitment: backend.commitment})
		if err != nil {
			return nil, err
		}
		if len(getMultipleAccountsRsp.Value) != end-index {
			return nil, fmt.Errorf("get accounts err, some account is missing")
		}
		for i, account := range getMultipleAccountsRsp.Value {
			accounts = append(accounts, &Account{
				PubKey:  pubkeys[index+i],
				Height:  getMultipleAccountsRsp.Context.Slot,
				Account: account,
			})
		}
		index = end
	}
	return accounts, nil
}

// Account returns the account at pubkey. A missing account is returned with
// a nil Account rather than an error.
func (backend *Backend) Account(ctx context.Context, pubkey solana.PublicKey) (*Account, error) {
	response, err := backend.rpcClient.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: backend.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return &Account{PubKey: pubkey}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		PubKey:  pubkey,
		Height:  response.Context.Slot,
		Account: response.Value,
	}, nil
}

func (backend *Backend) HasAccount(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	account, err := backend.Account(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return account.Account != nil, nil
}

func (backend *Backend) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return backend.rpcClient.GetMinimumBalanceForRentExemption(ctx, size, backend.commitment)
}
