package harvest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
)

const (
	DefaultBatchSize   = 30
	DefaultParallelism = 4
)

var (
	ErrInvalidRequest    = errors.New("harvest: invalid request")
	ErrNoTransferFee     = errors.New("harvest: mint has no transfer fee config")
	ErrAuthorityMismatch = errors.New("harvest: authority is not the withdraw withheld authority")
	ErrMissingSigner     = errors.New("harvest: missing authority signer")
	ErrNothingWithheld   = errors.New("harvest: no source withholds fees")
)

type Mode int

const (
	// Sequential submits batches one after another and stops at the first
	// failure.
	Sequential Mode = iota
	// Parallel submits up to Parallelism batches at once. Every batch creates
	// the destination idempotently.
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

func ParseMode(mode string) (Mode, error) {
	switch strings.ToLower(mode) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	}
	return Sequential, fmt.Errorf("%w: mode %q", ErrInvalidRequest, mode)
}

type Request struct {
	Mint    solana.PublicKey
	Sources []solana.PublicKey
	// Owner of the destination token account; the caller when nil.
	Owner *solana.PublicKey
	// Authority, when set, must be the withdraw withheld authority of the
	// mint.
	Authority *solana.PublicKey
	// AuthoritySigner signs when the withdraw withheld authority is not the
	// caller.
	AuthoritySigner *solana.PrivateKey
	BatchSize       int
	Mode            Mode
	Parallelism     int
	// SkipEmpty drops sources that are closed or withhold nothing before
	// batching.
	SkipEmpty bool
}

func (req *Request) normalize(needSources bool) error {
	if req.Mint.IsZero() {
		return fmt.Errorf("%w: mint is not set", ErrInvalidRequest)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}
	if req.BatchSize > token2022.MaxWithheldSources {
		return fmt.Errorf("%w: batch size %d > %d", ErrInvalidRequest, req.BatchSize, token2022.MaxWithheldSources)
	}
	if req.Parallelism <= 0 {
		req.Parallelism = DefaultParallelism
	}
	if needSources && len(req.Sources) == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, token2022.ErrNoSources)
	}
	return nil
}

func orCaller(key *solana.PublicKey, caller solana.PublicKey) solana.PublicKey {
	if key != nil {
		return *key
	}
	return caller
}
