package mint

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
)

var ErrMissingSigner = errors.New("mint: missing signer")

type Submitter interface {
	RentSource
	Submit(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) (*backend.Receipt, error)
	HasSigner(key solana.PublicKey) bool
}

// Recorder keeps created mints. It must not block.
type Recorder interface {
	RecordMint(bp *Blueprint, result *Result)
}

type Options struct {
	// MintKey is generated when nil.
	MintKey *solana.PrivateKey
	// Signers are authorities other than the backend wallets, for example a
	// mint authority that is not the owner.
	Signers []solana.PrivateKey
}

type Result struct {
	Mint      solana.PublicKey
	Signature solana.Signature
	Slot      uint64
	Plan      *Plan
}

type Creator struct {
	logger    *log.Logger
	assembler *Assembler
	submitter Submitter
	recorder  Recorder
}

func NewCreator(submitter Submitter) *Creator {
	return &Creator{
		logger:    utils.NewLog(config.LogPath, config.MintLog),
		assembler: NewAssembler(submitter),
		submitter: submitter,
	}
}

func (c *Creator) SetRecorder(recorder Recorder) {
	c.recorder = recorder
}

func (c *Creator) Assembler() *Assembler {
	return c.assembler
}

// Create assembles bp under a fresh mint key and submits it as one
// transaction. Nothing is retried: a resubmission would try to allocate an
// existing account.
func (c *Creator) Create(ctx context.Context, bp *Blueprint, opts Options) (*Result, error) {
	mintKey := opts.MintKey
	if mintKey == nil {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate mint key: %w", err)
		}
		mintKey = &key
	}
	plan, err := c.assembler.Assemble(ctx, bp, mintKey.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	signers := append([]solana.PrivateKey{*mintKey}, opts.Signers...)
	if err := c.checkSigners(plan, signers); err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	receipt, err := c.submitter.Submit(ctx, plan.Instructions(), signers...)
	if err != nil {
		c.logger.Printf("mint %s submit err: %s", plan.Mint, err.Error())
		return nil, fmt.Errorf("submit: %w", err)
	}
	result := &Result{
		Mint:      plan.Mint,
		Signature: receipt.Signature,
		Slot:      receipt.Slot,
		Plan:      plan,
	}
	c.logger.Printf("mint %s created, signature %s", result.Mint, result.Signature)
	if c.recorder != nil {
		c.recorder.RecordMint(bp, result)
	}
	return result, nil
}

func (c *Creator) checkSigners(plan *Plan, signers []solana.PrivateKey) error {
	for _, key := range plan.Signers {
		if c.submitter.HasSigner(key) {
			continue
		}
		found := false
		for _, signer := range signers {
			if signer.PublicKey() == key {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
	}
	return nil
}
