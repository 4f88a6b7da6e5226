package harvest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/program"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	mu        sync.Mutex
	player    solana.PublicKey
	mints     map[solana.PublicKey][]byte
	tokens    map[solana.PublicKey][]byte
	existing  map[solana.PublicKey]bool
	submitted [][]solana.Instruction
	signers   [][]solana.PrivateKey
	// failAt makes the n-th submission (zero based) fail.
	failAt int
}

func newFakeChain(player solana.PublicKey) *fakeChain {
	return &fakeChain{
		player:   player,
		mints:    make(map[solana.PublicKey][]byte),
		tokens:   make(map[solana.PublicKey][]byte),
		existing: make(map[solana.PublicKey]bool),
		failAt:   -1,
	}
}

func (f *fakeChain) Account(ctx context.Context, key solana.PublicKey) (*backend.Account, error) {
	data, ok := f.mints[key]
	if !ok {
		return &backend.Account{PubKey: key}, nil
	}
	return &backend.Account{
		PubKey: key,
		Height: 9,
		Account: &rpc.Account{
			Owner: program.Token2022,
			Data:  rpc.DataBytesOrJSONFromBytes(data),
		},
	}, nil
}

func (f *fakeChain) Accounts(ctx context.Context, keys []solana.PublicKey) ([]*backend.Account, error) {
	accounts := make([]*backend.Account, 0, len(keys))
	for _, key := range keys {
		data, ok := f.tokens[key]
		if !ok {
			accounts = append(accounts, &backend.Account{PubKey: key})
			continue
		}
		accounts = append(accounts, &backend.Account{
			PubKey: key,
			Account: &rpc.Account{
				Owner: program.Token2022,
				Data:  rpc.DataBytesOrJSONFromBytes(data),
			},
		})
	}
	return accounts, nil
}

func (f *fakeChain) HasAccount(ctx context.Context, key solana.PublicKey) (bool, error) {
	return f.existing[key], nil
}

func (f *fakeChain) Submit(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) (*backend.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := len(f.submitted)
	f.submitted = append(f.submitted, ins)
	f.signers = append(f.signers, signers)
	if index == f.failAt {
		return nil, errors.New("transaction simulation failed")
	}
	var sig solana.Signature
	sig[0] = byte(index + 1)
	return &backend.Receipt{Signature: sig, Slot: uint64(100 + index)}, nil
}

func (f *fakeChain) Player() solana.PublicKey {
	return f.player
}

func (f *fakeChain) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func mintData(t *testing.T, withdraw solana.PublicKey) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &token2022.MintLayout{Decimals: 6, IsInitialized: 1}))
	buf.Write(make([]byte, token2022.AccountLayoutSize-token2022.MintLayoutSize))
	buf.WriteByte(byte(token2022.AccountTypeMint))
	header := make([]byte, 4)
	binary.LittleEndian.PutUint16(header, uint16(token2022.ExtensionTransferFeeConfig))
	binary.LittleEndian.PutUint16(header[2:], 108)
	buf.Write(header)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &token2022.TransferFeeConfigLayout{
		WithdrawWithheldAuthority: withdraw,
		NewerTransferFee:          token2022.TransferFee{TransferFeeBasisPoints: 500, MaximumFee: 5000},
	}))
	return buf.Bytes()
}

func tokenData(t *testing.T, mint, owner solana.PublicKey, withheld uint64) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &token2022.AccountLayout{
		Mint:  mint,
		Owner: owner,
		State: token2022.AccountStateInitialized,
	}))
	buf.WriteByte(byte(token2022.AccountTypeAccount))
	header := make([]byte, 4)
	binary.LittleEndian.PutUint16(header, uint16(token2022.ExtensionTransferFeeAmount))
	binary.LittleEndian.PutUint16(header[2:], 8)
	buf.Write(header)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &token2022.TransferFeeAmountLayout{WithheldAmount: withheld}))
	return buf.Bytes()
}

func keys(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, solana.NewWallet().PublicKey())
	}
	return out
}

type fixture struct {
	chain     *fakeChain
	harvester *Harvester
	player    solana.PublicKey
	mint      solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.LogPath = t.TempDir() + "/"
	player := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	chain := newFakeChain(player)
	chain.mints[mint] = mintData(t, player)
	return &fixture{
		chain:     chain,
		harvester: NewHarvester(chain),
		player:    player,
		mint:      mint,
	}
}

func instructionData(t *testing.T, in solana.Instruction) []byte {
	t.Helper()
	data, err := in.Data()
	require.NoError(t, err)
	return data
}

func TestPartition(t *testing.T) {
	sources := keys(65)
	batches := Partition(sources, 30)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 30)
	assert.Len(t, batches[1], 30)
	assert.Len(t, batches[2], 5)
	assert.Equal(t, sources[30], batches[1][0])
	assert.Equal(t, sources[64], batches[2][4])

	withDuplicates := append(append([]solana.PublicKey{}, sources[:10]...), sources[:5]...)
	batches = Partition(withDuplicates, 4)
	require.Len(t, batches, 3)
	assert.Equal(t, sources[:4], batches[0])
	assert.Equal(t, sources[8:10], batches[2])

	assert.Empty(t, Partition(nil, 30))
	assert.Len(t, Partition(sources, 0), 3)
}

func TestWithdrawFromAccounts_Sequential(t *testing.T) {
	f := newFixture(t)
	req := &Request{Mint: f.mint, Sources: keys(65)}

	run, err := f.harvester.WithdrawFromAccounts(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State())
	require.Equal(t, 3, f.chain.count())

	require.Len(t, f.chain.submitted[0], 2)
	assert.Equal(t, []byte{1}, instructionData(t, f.chain.submitted[0][0]))
	assert.Equal(t, []byte{26, 3, 30}, instructionData(t, f.chain.submitted[0][1]))
	require.Len(t, f.chain.submitted[1], 1)
	assert.Equal(t, []byte{26, 3, 30}, instructionData(t, f.chain.submitted[1][0]))
	assert.Equal(t, []byte{26, 3, 5}, instructionData(t, f.chain.submitted[2][0]))
	assert.Empty(t, f.chain.signers[0])

	batches := run.Batches()
	require.Len(t, batches, 3)
	for i, batch := range batches {
		assert.True(t, batch.Done)
		assert.Equal(t, byte(i+1), batch.Signature[0])
	}
	current, total := run.Progress()
	assert.Equal(t, 3, current)
	assert.Equal(t, 3, total)

	found, ok := f.harvester.Run(run.Id)
	require.True(t, ok)
	assert.Equal(t, run, found)
}

func TestWithdrawFromAccounts_DestinationExists(t *testing.T) {
	f := newFixture(t)
	run, err := f.harvester.WithdrawFromAccounts(context.Background(), &Request{Mint: f.mint, Sources: keys(3)})
	require.NoError(t, err)
	f.chain.existing[run.Destination] = true

	_, err = f.harvester.WithdrawFromAccounts(context.Background(), &Request{Mint: f.mint, Sources: keys(3)})
	require.NoError(t, err)
	require.Equal(t, 2, f.chain.count())
	assert.Len(t, f.chain.submitted[1], 1)
}

func TestWithdrawFromAccounts_StopsAtFailedBatch(t *testing.T) {
	f := newFixture(t)
	f.chain.failAt = 1
	sources := keys(65)

	run, err := f.harvester.WithdrawFromAccounts(context.Background(), &Request{Mint: f.mint, Sources: sources})
	require.Error(t, err)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, sources[30:60], batchErr.Sources)

	assert.Equal(t, 2, f.chain.count())
	assert.Equal(t, StateFailed, run.State())
	batches := run.Batches()
	assert.True(t, batches[0].Done)
	assert.False(t, batches[1].Done)
	assert.NotEmpty(t, batches[1].Err)
	assert.False(t, batches[2].Done)
	assert.Empty(t, batches[2].Err)
	current, _ := run.Progress()
	assert.Equal(t, 2, current)
}

func TestWithdrawFromAccounts_Parallel(t *testing.T) {
	f := newFixture(t)
	req := &Request{Mint: f.mint, Sources: keys(65), Mode: Parallel, Parallelism: 2}

	run, err := f.harvester.WithdrawFromAccounts(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State())
	require.Equal(t, 3, f.chain.count())
	for _, ins := range f.chain.submitted {
		require.Len(t, ins, 2)
		assert.Equal(t, []byte{1}, instructionData(t, ins[0]))
	}
}

func TestWithdrawFromAccounts_ParallelCancelsUnstarted(t *testing.T) {
	f := newFixture(t)
	f.chain.failAt = 0
	req := &Request{Mint: f.mint, Sources: keys(90), Mode: Parallel, Parallelism: 1}

	run, err := f.harvester.WithdrawFromAccounts(context.Background(), req)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 0, batchErr.Index)
	assert.Equal(t, 1, f.chain.count())
	assert.Equal(t, StateFailed, run.State())
}

func TestWithdrawFromAccounts_Authority(t *testing.T) {
	f := newFixture(t)
	other := solana.NewWallet()
	ctx := context.Background()

	f.chain.mints[f.mint] = mintData(t, other.PublicKey())
	_, err := f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2)})
	require.ErrorIs(t, err, ErrMissingSigner)

	player := f.player
	_, err = f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2), Authority: &player})
	require.ErrorIs(t, err, ErrAuthorityMismatch)

	authority := other.PublicKey()
	_, err = f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2), Authority: &authority})
	require.ErrorIs(t, err, ErrMissingSigner)

	wrong := solana.NewWallet().PrivateKey
	_, err = f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2), Authority: &authority, AuthoritySigner: &wrong})
	require.ErrorIs(t, err, ErrMissingSigner)
	assert.Equal(t, 0, f.chain.count())

	run, err := f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2), Authority: &authority, AuthoritySigner: &other.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State())
	require.Len(t, f.chain.signers[0], 1)
	assert.Equal(t, authority, f.chain.signers[0][0].PublicKey())
	withdraw := f.chain.submitted[0][1].Accounts()
	assert.Equal(t, authority, withdraw[2].PublicKey)

	f.chain.mints[f.mint] = mintData(t, solana.PublicKey{})
	_, err = f.harvester.WithdrawFromAccounts(ctx, &Request{Mint: f.mint, Sources: keys(2)})
	require.ErrorIs(t, err, ErrAuthorityMismatch)
}

func TestWithdrawFromMint_SignerOnlyWhenNeeded(t *testing.T) {
	f := newFixture(t)
	secondary := solana.NewWallet()
	ctx := context.Background()

	_, err := f.harvester.WithdrawFromMint(ctx, &Request{Mint: f.mint, AuthoritySigner: &secondary.PrivateKey})
	require.NoError(t, err)
	require.Len(t, f.chain.signers, 1)
	assert.Empty(t, f.chain.signers[0])
	assert.Equal(t, f.player, f.chain.submitted[0][2].Accounts()[2].PublicKey)

	f.chain.mints[f.mint] = mintData(t, secondary.PublicKey())
	_, err = f.harvester.WithdrawFromMint(ctx, &Request{Mint: f.mint, AuthoritySigner: &secondary.PrivateKey})
	require.NoError(t, err)
	require.Len(t, f.chain.signers[1], 1)
	assert.Equal(t, secondary.PublicKey(), f.chain.signers[1][0].PublicKey())
	assert.Equal(t, secondary.PublicKey(), f.chain.submitted[1][2].Accounts()[2].PublicKey)
}

func TestHarvester_RejectsMintWithoutTransferFee(t *testing.T) {
	f := newFixture(t)
	f.chain.mints[f.mint] = mintData(t, f.player)[:token2022.MintLayoutSize]

	_, err := f.harvester.WithdrawFromAccounts(context.Background(), &Request{Mint: f.mint, Sources: keys(2)})
	require.ErrorIs(t, err, ErrNoTransferFee)
	_, err = f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: keys(2)})
	require.ErrorIs(t, err, ErrNoTransferFee)
	_, err = f.harvester.WithdrawFromMint(context.Background(), &Request{Mint: f.mint})
	require.ErrorIs(t, err, ErrNoTransferFee)
}

func TestHarvester_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.harvester.HarvestToMint(context.Background(), &Request{Sources: keys(1)})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: keys(1), BatchSize: 256})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHarvestToMint(t *testing.T) {
	f := newFixture(t)
	run, err := f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: keys(45)})
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State())
	require.Equal(t, 2, f.chain.count())
	for _, ins := range f.chain.submitted {
		require.Len(t, ins, 1)
		assert.Equal(t, []byte{26, 4}, instructionData(t, ins[0]))
	}
	assert.Len(t, f.chain.submitted[1][0].Accounts(), 16)
}

func TestWithdrawFromMint(t *testing.T) {
	f := newFixture(t)
	run, err := f.harvester.WithdrawFromMint(context.Background(), &Request{Mint: f.mint})
	require.NoError(t, err)
	require.Equal(t, 1, f.chain.count())
	ins := f.chain.submitted[0]
	require.Len(t, ins, 3)
	limit := instructionData(t, ins[0])
	assert.Equal(t, byte(2), limit[0])
	assert.Equal(t, uint32(ComputeUnitsCreateDestination), binary.LittleEndian.Uint32(limit[1:]))
	assert.Equal(t, []byte{26, 2}, instructionData(t, ins[2]))

	f.chain.existing[run.Destination] = true
	_, err = f.harvester.WithdrawFromMint(context.Background(), &Request{Mint: f.mint})
	require.NoError(t, err)
	ins = f.chain.submitted[1]
	require.Len(t, ins, 2)
	assert.Equal(t, uint32(ComputeUnitsWithdraw), binary.LittleEndian.Uint32(instructionData(t, ins[0])[1:]))
}

type recording struct {
	runs  []*Run
	texts []string
}

func (r *recording) RecordRun(run *Run) {
	r.runs = append(r.runs, run)
}

func (r *recording) Text(ctx context.Context, content string) error {
	r.texts = append(r.texts, content)
	return nil
}

func TestHarvester_RecordsAndNotifies(t *testing.T) {
	f := newFixture(t)
	rec := &recording{}
	f.harvester.SetRecorder(rec)
	f.harvester.SetNotifier(rec)
	f.chain.failAt = 0

	run, err := f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: keys(3)})
	require.Error(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.Id, rec.runs[0].Id)
	require.Len(t, rec.texts, 1)
	assert.Contains(t, rec.texts[0], "failed")

	report := run.Report()
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, "sequential", report.Mode)
	assert.Equal(t, 1, report.Total)
	assert.Contains(t, report.Err, "batch 0")
}

func TestHarvester_Withheld(t *testing.T) {
	f := newFixture(t)
	sources := keys(4)
	owner := solana.NewWallet().PublicKey()
	f.chain.tokens[sources[0]] = tokenData(t, f.mint, owner, 5)
	f.chain.tokens[sources[1]] = tokenData(t, f.mint, owner, 0)
	f.chain.tokens[sources[3]] = tokenData(t, solana.NewWallet().PublicKey(), owner, 9)

	holdings, err := f.harvester.Withheld(context.Background(), f.mint, append(sources, sources[0]))
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, sources[0], holdings[0].Account)
	assert.Equal(t, owner, holdings[0].Owner)
	assert.Equal(t, uint64(5), holdings[0].Withheld)
	assert.Equal(t, sources[1], holdings[1].Account)
	assert.Zero(t, holdings[1].Withheld)

	_, err = f.harvester.Withheld(context.Background(), solana.PublicKey{}, sources)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHarvestToMint_SkipEmpty(t *testing.T) {
	f := newFixture(t)
	sources := keys(3)
	f.chain.tokens[sources[0]] = tokenData(t, f.mint, f.player, 0)
	f.chain.tokens[sources[2]] = tokenData(t, f.mint, f.player, 12)

	run, err := f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: sources, SkipEmpty: true})
	require.NoError(t, err)
	require.Len(t, run.Batches(), 1)
	assert.Equal(t, []solana.PublicKey{sources[2]}, run.Batches()[0].Sources)
	require.Equal(t, 1, f.chain.count())
	assert.Len(t, f.chain.submitted[0][0].Accounts(), 2)

	_, err = f.harvester.WithdrawFromAccounts(context.Background(), &Request{Mint: f.mint, Sources: sources[:2], SkipEmpty: true})
	require.ErrorIs(t, err, ErrNothingWithheld)
	assert.Equal(t, 1, f.chain.count())
}

func TestHarvester_EvictsFinishedRuns(t *testing.T) {
	f := newFixture(t)
	f.harvester.maxRuns = 2
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		run, err := f.harvester.HarvestToMint(context.Background(), &Request{Mint: f.mint, Sources: keys(1)})
		require.NoError(t, err)
		ids = append(ids, run.Id)
	}
	_, ok := f.harvester.Run(ids[0])
	assert.False(t, ok)
	for _, id := range ids[1:] {
		_, ok = f.harvester.Run(id)
		assert.True(t, ok)
	}

	pending := newRun(OperationHarvestToMint, f.mint, f.mint, Sequential, nil)
	f.harvester.register(pending)
	f.harvester.register(newRun(OperationHarvestToMint, f.mint, f.mint, Sequential, nil))
	_, ok = f.harvester.Run(pending.Id)
	assert.True(t, ok)
	assert.Len(t, f.harvester.runs, 2)
}
