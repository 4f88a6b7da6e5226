package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/egaotan/solana-token2022/computebudget"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrNoBlockhash        = errors.New("backend: no blockhash available")
	ErrBlockhashExpired   = errors.New("backend: blockhash expired before confirmation")
	ErrTransactionFailed  = errors.New("backend: transaction failed")
	ErrNoInstructions     = errors.New("backend: no instructions")
	ErrSimulationRejected = errors.New("backend: simulation rejected")
)

// Receipt identifies a confirmed transaction.
type Receipt struct {
	Signature            solana.Signature
	Slot                 uint64
	LastValidBlockHeight uint64
}

func (backend *Backend) build(ctx context.Context, ins []solana.Instruction, signers []solana.PrivateKey) (*solana.Transaction, uint64, error) {
	if len(ins) == 0 {
		return nil, 0, ErrNoInstructions
	}
	latest, err := backend.latestBlockhash(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("get blockhash: %w", err)
	}
	if backend.priorityFee > 0 {
		price := computebudget.NewProgram().InstructionSetComputeUnitPrice(backend.priorityFee)
		ins = append([]solana.Instruction{price}, ins...)
	}
	trx, err := solana.NewTransaction(ins, latest.Blockhash, solana.TransactionPayer(backend.player))
	if err != nil {
		return nil, 0, fmt.Errorf("build transaction: %w", err)
	}
	_, err = trx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return backend.getWallet(key, signers)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("sign transaction: %w", err)
	}
	return trx, latest.LastValidBlockHeight, nil
}

// Submit signs ins with the player as fee payer, sends it with preflight and
// waits until it reaches the backend commitment. Signers extend the imported
// wallets for this transaction only.
func (backend *Backend) Submit(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) (*Receipt, error) {
	start := time.Now()
	trx, lastValid, err := backend.build(ctx, ins, signers)
	if err != nil {
		transactionsFailed.WithLabelValues("build").Inc()
		return nil, err
	}
	signature, err := backend.rpcClient.SendTransactionWithOpts(ctx, trx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: backend.commitment,
	})
	if err != nil {
		transactionsFailed.WithLabelValues("send").Inc()
		backend.logger.Printf("SendTransactionWithOpts err: %s", err.Error())
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	transactionsSubmitted.Inc()
	backend.logger.Printf("sent transaction %s, last valid block height %d", signature, lastValid)
	receipt := &Receipt{
		Signature:            signature,
		LastValidBlockHeight: lastValid,
	}
	if err := backend.confirm(ctx, receipt); err != nil {
		transactionsFailed.WithLabelValues("confirm").Inc()
		backend.logger.Printf("transaction %s not confirmed: %s", signature, err.Error())
		return receipt, err
	}
	confirmationLatency.Observe(time.Since(start).Seconds())
	backend.logger.Printf("transaction %s confirmed at slot %d", signature, receipt.Slot)
	return receipt, nil
}

func (backend *Backend) confirmed(status rpc.ConfirmationStatusType) bool {
	switch backend.commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	}
	return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
}

func (backend *Backend) confirm(ctx context.Context, receipt *Receipt) error {
	if backend.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, backend.confirmTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(backend.pollInterval)
	defer ticker.Stop()
	for {
		statuses, err := backend.rpcClient.GetSignatureStatuses(ctx, false, receipt.Signature)
		if err != nil {
			backend.logger.Printf("GetSignatureStatuses %s err: %s", receipt.Signature, err.Error())
		} else if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, receipt.Signature, status.Err)
			}
			if backend.confirmed(status.ConfirmationStatus) {
				receipt.Slot = status.Slot
				return nil
			}
		}
		height, err := backend.rpcClient.GetBlockHeight(ctx, backend.commitment)
		if err == nil && height > receipt.LastValidBlockHeight {
			return fmt.Errorf("%w: %s at height %d", ErrBlockhashExpired, receipt.Signature, height)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Simulate runs ins without sending them and returns the program logs and
// the compute units consumed.
func (backend *Backend) Simulate(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) ([]string, uint64, error) {
	trx, _, err := backend.build(ctx, ins, signers)
	if err != nil {
		return nil, 0, err
	}
	response, err := backend.rpcClient.SimulateTransactionWithOpts(ctx, trx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: backend.commitment,
	})
	if err != nil {
		return nil, 0, err
	}
	simulateTransactionResponse := response.Value
	if simulateTransactionResponse.Logs == nil {
		return nil, 0, fmt.Errorf("%w: log is nil, simulate failed before the transaction was able to executed", ErrSimulationRejected)
	}
	unitConsumed := uint64(0)
	if simulateTransactionResponse.UnitsConsumed != nil {
		unitConsumed = *simulateTransactionResponse.UnitsConsumed
	}
	if simulateTransactionResponse.Err != nil {
		logsJson, _ := json.MarshalIndent(simulateTransactionResponse.Logs, "", "    ")
		backend.logger.Printf("simulate logs: %s", logsJson)
		return simulateTransactionResponse.Logs, unitConsumed, fmt.Errorf("%w: %v", ErrSimulationRejected, simulateTransactionResponse.Err)
	}
	return simulateTransactionResponse.Logs, unitConsumed, nil
}
