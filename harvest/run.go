package harvest

import (
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

type State string

const (
	StatePending            State = "pending"
	StateDestinationEnsured State = "destination_ensured"
	StateSubmitting         State = "submitting"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

type Operation string

const (
	OperationWithdrawFromAccounts Operation = "withdraw_from_accounts"
	OperationHarvestToMint        Operation = "harvest_to_mint"
	OperationWithdrawFromMint     Operation = "withdraw_from_mint"
)

// BatchError identifies the batch whose submission failed. Batches before it
// in a sequential run stay applied.
type BatchError struct {
	Index   int
	Sources []solana.PublicKey
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d sources): %v", e.Index, len(e.Sources), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type Batch struct {
	Index     int                `json:"index"`
	Sources   []solana.PublicKey `json:"sources"`
	Signature solana.Signature   `json:"signature"`
	Slot      uint64             `json:"slot"`
	Done      bool               `json:"done"`
	Err       string             `json:"err,omitempty"`
}

// Run tracks one harvest operation. It is safe to read while the harvester
// is still submitting.
type Run struct {
	Id          string
	Operation   Operation
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Mode        Mode

	mu       sync.Mutex
	state    State
	current  int
	batches  []*Batch
	err      error
	started  time.Time
	finished time.Time
}

func newRun(op Operation, mint solana.PublicKey, destination solana.PublicKey, mode Mode, batches [][]solana.PublicKey) *Run {
	run := &Run{
		Id:          uuid.NewString(),
		Operation:   op,
		Mint:        mint,
		Destination: destination,
		Mode:        mode,
		state:       StatePending,
		started:     time.Now(),
	}
	for i, sources := range batches {
		run.batches = append(run.batches, &Batch{Index: i, Sources: sources})
	}
	return run
}

func (run *Run) setState(state State) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.state = state
}

func (run *Run) submitting(index int) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.state = StateSubmitting
	if index+1 > run.current {
		run.current = index + 1
	}
}

func (run *Run) confirmed(index int, signature solana.Signature, slot uint64) {
	run.mu.Lock()
	defer run.mu.Unlock()
	batch := run.batches[index]
	batch.Signature = signature
	batch.Slot = slot
	batch.Done = true
}

func (run *Run) failed(index int, err error) *BatchError {
	run.mu.Lock()
	defer run.mu.Unlock()
	batch := run.batches[index]
	batch.Err = err.Error()
	return &BatchError{Index: index, Sources: batch.Sources, Err: err}
}

func (run *Run) finish(err error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.finished = time.Now()
	run.err = err
	if err != nil {
		run.state = StateFailed
	} else {
		run.state = StateDone
	}
}

func (run *Run) State() State {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.state
}

// Progress is the highest batch started and the number of batches.
func (run *Run) Progress() (int, int) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.current, len(run.batches)
}

func (run *Run) Err() error {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.err
}

// Batches returns copies of the batch records.
func (run *Run) Batches() []Batch {
	run.mu.Lock()
	defer run.mu.Unlock()
	batches := make([]Batch, 0, len(run.batches))
	for _, batch := range run.batches {
		batches = append(batches, *batch)
	}
	return batches
}

type Report struct {
	Id          string           `json:"id"`
	Operation   Operation        `json:"operation"`
	Mint        solana.PublicKey `json:"mint"`
	Destination solana.PublicKey `json:"destination"`
	Mode        string           `json:"mode"`
	State       State            `json:"state"`
	Current     int              `json:"current"`
	Total       int              `json:"total"`
	Batches     []Batch          `json:"batches"`
	Err         string           `json:"err,omitempty"`
	Started     time.Time        `json:"started"`
	Finished    time.Time        `json:"finished"`
}

func (run *Run) Report() *Report {
	batches := run.Batches()
	run.mu.Lock()
	defer run.mu.Unlock()
	report := &Report{
		Id:          run.Id,
		Operation:   run.Operation,
		Mint:        run.Mint,
		Destination: run.Destination,
		Mode:        run.Mode.String(),
		State:       run.state,
		Current:     run.current,
		Total:       len(run.batches),
		Batches:     batches,
		Started:     run.started,
		Finished:    run.finished,
	}
	if run.err != nil {
		report.Err = run.err.Error()
	}
	return report
}
