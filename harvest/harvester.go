package harvest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/badgerodon/collections/stack"
	"github.com/egaotan/solana-token2022/ata"
	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/computebudget"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/program"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

const (
	ComputeUnitsCreateDestination = 42_000
	ComputeUnitsWithdraw          = 10_000
)

// MaxRuns bounds the runs kept in memory. Older finished runs are dropped
// first; the store keeps them.
const MaxRuns = 1024

type Chain interface {
	Account(ctx context.Context, key solana.PublicKey) (*backend.Account, error)
	Accounts(ctx context.Context, keys []solana.PublicKey) ([]*backend.Account, error)
	HasAccount(ctx context.Context, key solana.PublicKey) (bool, error)
	Submit(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) (*backend.Receipt, error)
	Player() solana.PublicKey
}

// Recorder keeps finished runs. It must not block.
type Recorder interface {
	RecordRun(run *Run)
}

type Notifier interface {
	Text(ctx context.Context, content string) error
}

type Harvester struct {
	logger   *log.Logger
	chain    Chain
	token    *token2022.Program
	ata      *ata.Program
	budget   *computebudget.Program
	recorder Recorder
	notifier Notifier
	lock     sync.RWMutex
	runs     map[string]*Run
	order    []string
	maxRuns  int
}

func NewHarvester(chain Chain) *Harvester {
	return &Harvester{
		logger:  utils.NewLog(config.LogPath, config.HarvestLog),
		chain:   chain,
		token:   token2022.NewProgram(),
		ata:     ata.NewProgram(program.Token2022),
		budget:  computebudget.NewProgram(),
		runs:    make(map[string]*Run),
		maxRuns: MaxRuns,
	}
}

func (h *Harvester) SetRecorder(recorder Recorder) {
	h.recorder = recorder
}

func (h *Harvester) SetNotifier(notifier Notifier) {
	h.notifier = notifier
}

func (h *Harvester) Run(id string) (*Run, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	run, ok := h.runs[id]
	return run, ok
}

func (h *Harvester) register(run *Run) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.runs[run.Id] = run
	h.order = append(h.order, run.Id)
	for i := 0; len(h.runs) > h.maxRuns && i < len(h.order); {
		id := h.order[i]
		if state := h.runs[id].State(); state != StateDone && state != StateFailed {
			i++
			continue
		}
		delete(h.runs, id)
		h.order = append(h.order[:i], h.order[i+1:]...)
	}
}

// unit builds the instructions of one batch.
type unit func(index int, sources []solana.PublicKey) ([]solana.Instruction, error)

// WithdrawFromAccounts moves withheld amounts from the sources straight into
// the destination token account. The withdraw withheld authority must sign.
func (h *Harvester) WithdrawFromAccounts(ctx context.Context, req *Request) (*Run, error) {
	if err := req.normalize(true); err != nil {
		return nil, err
	}
	authority, signers, err := h.authorize(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.SkipEmpty {
		if err := h.withholding(ctx, req); err != nil {
			return nil, err
		}
	}
	destination, create, err := h.destination(ctx, req)
	if err != nil {
		return nil, err
	}
	run := newRun(OperationWithdrawFromAccounts, req.Mint, destination, req.Mode, Partition(req.Sources, req.BatchSize))
	h.register(run)
	run.setState(StateDestinationEnsured)
	build := func(index int, sources []solana.PublicKey) ([]solana.Instruction, error) {
		withdraw, err := h.token.InstructionWithdrawWithheldTokensFromAccounts(req.Mint, destination, authority, sources)
		if err != nil {
			return nil, err
		}
		if create != nil && (index == 0 || req.Mode == Parallel) {
			return []solana.Instruction{create, withdraw}, nil
		}
		return []solana.Instruction{withdraw}, nil
	}
	return h.execute(ctx, run, req.Parallelism, build, signers)
}

// HarvestToMint sweeps withheld amounts from the sources into the mint. Anyone
// may call it.
func (h *Harvester) HarvestToMint(ctx context.Context, req *Request) (*Run, error) {
	if err := req.normalize(true); err != nil {
		return nil, err
	}
	if _, err := h.transferFeeConfig(ctx, req.Mint); err != nil {
		return nil, err
	}
	if req.SkipEmpty {
		if err := h.withholding(ctx, req); err != nil {
			return nil, err
		}
	}
	run := newRun(OperationHarvestToMint, req.Mint, req.Mint, req.Mode, Partition(req.Sources, req.BatchSize))
	h.register(run)
	run.setState(StateDestinationEnsured)
	build := func(index int, sources []solana.PublicKey) ([]solana.Instruction, error) {
		in, err := h.token.InstructionHarvestWithheldTokensToMint(req.Mint, sources)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{in}, nil
	}
	return h.execute(ctx, run, req.Parallelism, build, nil)
}

// WithdrawFromMint moves the amount withheld in the mint into the destination
// token account in a single transaction.
func (h *Harvester) WithdrawFromMint(ctx context.Context, req *Request) (*Run, error) {
	if err := req.normalize(false); err != nil {
		return nil, err
	}
	authority, signers, err := h.authorize(ctx, req)
	if err != nil {
		return nil, err
	}
	destination, create, err := h.destination(ctx, req)
	if err != nil {
		return nil, err
	}
	run := newRun(OperationWithdrawFromMint, req.Mint, destination, Sequential, [][]solana.PublicKey{nil})
	h.register(run)
	run.setState(StateDestinationEnsured)
	build := func(index int, sources []solana.PublicKey) ([]solana.Instruction, error) {
		ins := make([]solana.Instruction, 0, 3)
		if create != nil {
			ins = append(ins, h.budget.InstructionSetComputeUnitLimit(ComputeUnitsCreateDestination), create)
		} else {
			ins = append(ins, h.budget.InstructionSetComputeUnitLimit(ComputeUnitsWithdraw))
		}
		return append(ins, h.token.InstructionWithdrawWithheldTokensFromMint(req.Mint, destination, authority)), nil
	}
	return h.execute(ctx, run, 1, build, signers)
}

func (h *Harvester) transferFeeConfig(ctx context.Context, mint solana.PublicKey) (*token2022.TransferFeeConfigLayout, error) {
	account, err := h.chain.Account(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	keyed, err := h.token.ParseMint(account)
	if err != nil {
		return nil, err
	}
	feeConfig, err := keyed.TransferFeeConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoTransferFee, mint, err)
	}
	return feeConfig, nil
}

// authorize resolves who signs for the withdraw withheld authority stored in
// the mint: the caller when it holds it, otherwise AuthoritySigner when its
// key matches. A named Authority must equal the on-chain one.
func (h *Harvester) authorize(ctx context.Context, req *Request) (solana.PublicKey, []solana.PrivateKey, error) {
	caller := h.chain.Player()
	feeConfig, err := h.transferFeeConfig(ctx, req.Mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	onChain := feeConfig.WithdrawWithheldAuthority
	if onChain.IsZero() {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: mint %s has none", ErrAuthorityMismatch, req.Mint)
	}
	if req.Authority != nil && *req.Authority != onChain {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: %s, on chain %s", ErrAuthorityMismatch, *req.Authority, onChain)
	}
	if onChain == caller {
		return caller, nil, nil
	}
	if req.AuthoritySigner != nil && req.AuthoritySigner.PublicKey() == onChain {
		return onChain, []solana.PrivateKey{*req.AuthoritySigner}, nil
	}
	return solana.PublicKey{}, nil, fmt.Errorf("%w: %s", ErrMissingSigner, onChain)
}

// destination derives the owner's token account and returns an idempotent
// create instruction when it does not exist yet.
func (h *Harvester) destination(ctx context.Context, req *Request) (solana.PublicKey, solana.Instruction, error) {
	caller := h.chain.Player()
	owner := orCaller(req.Owner, caller)
	destination, err := h.ata.Address(owner, req.Mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	exists, err := h.chain.HasAccount(ctx, destination)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("check destination %s: %w", destination, err)
	}
	if exists {
		return destination, nil, nil
	}
	return destination, h.ata.InstructionCreate(caller, destination, owner, req.Mint, true), nil
}

func (h *Harvester) execute(ctx context.Context, run *Run, parallelism int, build unit, signers []solana.PrivateKey) (*Run, error) {
	var err error
	if run.Mode == Parallel {
		err = h.parallel(ctx, run, parallelism, build, signers)
	} else {
		err = h.sequential(ctx, run, build, signers)
	}
	run.finish(err)
	runsTotal.WithLabelValues(string(run.Operation), string(run.State())).Inc()
	current, total := run.Progress()
	if err != nil {
		h.logger.Printf("run %s %s on mint %s failed at %d/%d: %s", run.Id, run.Operation, run.Mint, current, total, err.Error())
	} else {
		h.logger.Printf("run %s %s on mint %s done, %d batches", run.Id, run.Operation, run.Mint, total)
	}
	if h.recorder != nil {
		h.recorder.RecordRun(run)
	}
	h.notify(ctx, run)
	return run, err
}

func (h *Harvester) submit(ctx context.Context, run *Run, index int, sources []solana.PublicKey, build unit, signers []solana.PrivateKey) error {
	run.submitting(index)
	ins, err := build(index, sources)
	if err != nil {
		batchesTotal.WithLabelValues(string(run.Operation), "failed").Inc()
		return run.failed(index, err)
	}
	receipt, err := h.chain.Submit(ctx, ins, signers...)
	if err != nil {
		batchesTotal.WithLabelValues(string(run.Operation), "failed").Inc()
		return run.failed(index, err)
	}
	batchesTotal.WithLabelValues(string(run.Operation), "confirmed").Inc()
	run.confirmed(index, receipt.Signature, receipt.Slot)
	h.logger.Printf("run %s batch %d: %d sources, signature %s", run.Id, index, len(sources), receipt.Signature)
	return nil
}

// sequential pops batches in order and stops at the first failure.
func (h *Harvester) sequential(ctx context.Context, run *Run, build unit, signers []solana.PrivateKey) error {
	batches := run.Batches()
	pending := stack.New()
	for i := len(batches) - 1; i >= 0; i-- {
		pending.Push(batches[i])
	}
	for pending.Len() > 0 {
		batch := pending.Pop().(Batch)
		if err := ctx.Err(); err != nil {
			return run.failed(batch.Index, err)
		}
		if err := h.submit(ctx, run, batch.Index, batch.Sources, build, signers); err != nil {
			return err
		}
	}
	return nil
}

// parallel runs at most limit batches at once. The first failure cancels the
// batches that have not started.
func (h *Harvester) parallel(ctx context.Context, run *Run, limit int, build unit, signers []solana.PrivateKey) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, batch := range run.Batches() {
		batch := batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return h.submit(gctx, run, batch.Index, batch.Sources, build, signers)
		})
	}
	return g.Wait()
}

func (h *Harvester) notify(ctx context.Context, run *Run) {
	if h.notifier == nil {
		return
	}
	current, total := run.Progress()
	content := fmt.Sprintf("token2022 %s\nmint: %s\nrun: %s\nstate: %s (%d/%d)", run.Operation, run.Mint, run.Id, run.State(), current, total)
	if err := run.Err(); err != nil {
		content += "\nerr: " + err.Error()
	}
	if err := h.notifier.Text(ctx, content); err != nil {
		h.logger.Printf("notify run %s err: %s", run.Id, err.Error())
	}
}
