package mint

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
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
	sizes     []uint64
	signers   map[solana.PublicKey]bool
	submitted [][]solana.Instruction
	extra     [][]solana.PrivateKey
	err       error
	player    solana.PublicKey
	accounts  map[solana.PublicKey]*rpc.Account
}

func newFakeChain(signers ...solana.PublicKey) *fakeChain {
	chain := &fakeChain{signers: make(map[solana.PublicKey]bool), accounts: make(map[solana.PublicKey]*rpc.Account)}
	if len(signers) > 0 {
		chain.player = signers[0]
	}
	for _, signer := range signers {
		chain.signers[signer] = true
	}
	return chain
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	f.sizes = append(f.sizes, size)
	return (size + 128) * 6960, nil
}

func (f *fakeChain) Submit(ctx context.Context, ins []solana.Instruction, signers ...solana.PrivateKey) (*backend.Receipt, error) {
	f.submitted = append(f.submitted, ins)
	f.extra = append(f.extra, signers)
	if f.err != nil {
		return nil, f.err
	}
	var sig solana.Signature
	sig[0] = byte(len(f.submitted))
	return &backend.Receipt{Signature: sig, Slot: 77}, nil
}

func (f *fakeChain) HasSigner(key solana.PublicKey) bool {
	return f.signers[key]
}

func (f *fakeChain) Account(ctx context.Context, key solana.PublicKey) (*backend.Account, error) {
	account, ok := f.accounts[key]
	if !ok {
		return nil, errors.New("account not found")
	}
	return &backend.Account{PubKey: key, Account: account, Height: 9}, nil
}

func (f *fakeChain) HasAccount(ctx context.Context, key solana.PublicKey) (bool, error) {
	_, ok := f.accounts[key]
	return ok, nil
}

func (f *fakeChain) Player() solana.PublicKey {
	return f.player
}

func setup(t *testing.T) {
	t.Helper()
	config.LogPath = t.TempDir() + "/"
}

func scenario(owner solana.PublicKey) *Blueprint {
	return &Blueprint{
		Name:          "Fee Token",
		Symbol:        "FEE",
		Decimals:      6,
		TotalSupply:   1_000_000,
		Owner:         owner,
		MintAuthority: owner,
		Extensions: []token2022.Extension{
			token2022.TransferFeeConfig{FeeBasisPoints: 500, MaximumFee: 5000},
			token2022.MetadataPointer{},
		},
		Metadata: &token2022.TokenMetadata{
			Name:   "Fee Token",
			Symbol: "FEE",
			Uri:    "https://example.com/fee.json",
		},
		MintTotalSupply: true,
	}
}

func TestAssembler_Scenario(t *testing.T) {
	setup(t)
	owner := solana.NewWallet().PublicKey()
	mintKey := solana.NewWallet().PublicKey()
	chain := newFakeChain()
	bp := scenario(owner)

	plan, err := NewAssembler(chain).Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)

	assert.Equal(t, []StepKind{
		StepAllocate, StepAnnotate, StepInitExtension, StepInitExtension,
		StepInitMint, StepWriteMetadata, StepCreateATA, StepMintTo,
	}, plan.Kinds())
	assert.Equal(t, token2022.ExtensionTransferFeeConfig, plan.Steps[2].Extension)
	assert.Equal(t, token2022.ExtensionMetadataPointer, plan.Steps[3].Extension)

	overlay, err := bp.Metadata.Space()
	require.NoError(t, err)
	assert.Equal(t, 165+1+(4+108)+(4+64), plan.Size.MintSpace)
	assert.Equal(t, overlay, plan.Size.MetadataSpace)
	assert.Equal(t, plan.Size.MintSpace+overlay, plan.Size.Total)
	assert.Equal(t, []uint64{uint64(plan.Size.Total)}, chain.sizes)

	allocate, _ := plan.Steps[0].Instruction.Data()
	assert.Equal(t, plan.Rent, binary.LittleEndian.Uint64(allocate[4:]))
	assert.Equal(t, uint64(plan.Size.MintSpace), binary.LittleEndian.Uint64(allocate[12:]))
	assert.Equal(t, program.Token2022.Bytes(), allocate[20:52])

	memo, _ := plan.Steps[1].Instruction.Data()
	assert.Equal(t, []byte("Fee Token"), memo)

	mintTo, _ := plan.Steps[7].Instruction.Data()
	assert.Equal(t, uint64(1_000_000_000_000), binary.LittleEndian.Uint64(mintTo[1:]))
	assert.Equal(t, plan.OwnerAccount, plan.Steps[7].Instruction.Accounts()[1].PublicKey)
	assert.ElementsMatch(t, []solana.PublicKey{owner, mintKey}, plan.Signers)
}

func TestAssembler_FrozenDefault(t *testing.T) {
	setup(t)
	owner := solana.NewWallet().PublicKey()
	freeze := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()
	mintKey := solana.NewWallet().PublicKey()
	bp := &Blueprint{
		Name:            "Frozen",
		Symbol:          "FRZ",
		Decimals:        2,
		TotalSupply:     10,
		Owner:           owner,
		MintAuthority:   authority,
		FreezeAuthority: &freeze,
		Extensions: []token2022.Extension{
			token2022.DefaultAccountState{State: token2022.AccountStateFrozen},
		},
		MintTotalSupply: true,
	}
	assembler := NewAssembler(newFakeChain())

	plan, err := assembler.Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)
	assert.Equal(t, []StepKind{
		StepAllocate, StepAnnotate, StepInitExtension, StepInitMint, StepCreateATA, StepThaw, StepMintTo,
	}, plan.Kinds())
	thaw := plan.Steps[5].Instruction.Accounts()
	assert.Equal(t, freeze, thaw[2].PublicKey)
	assert.True(t, thaw[2].IsSigner)
	mintTo := plan.Steps[6].Instruction.Accounts()
	assert.Equal(t, authority, mintTo[2].PublicKey)
	assert.ElementsMatch(t, []solana.PublicKey{owner, mintKey, freeze, authority}, plan.Signers)

	bp.MintTotalSupply = false
	plan, err = assembler.Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepAllocate, StepAnnotate, StepInitExtension, StepInitMint}, plan.Kinds())

	bp.FreezeAuthority = nil
	_, err = assembler.Assemble(context.Background(), bp, mintKey)
	require.ErrorIs(t, err, ErrInvalidBlueprint)

	bp.MintTotalSupply = true
	_, err = assembler.Assemble(context.Background(), bp, mintKey)
	require.ErrorIs(t, err, ErrInvalidBlueprint)
}

func TestAssembler_Idempotent(t *testing.T) {
	setup(t)
	owner := solana.NewWallet().PublicKey()
	mintKey := solana.NewWallet().PublicKey()
	assembler := NewAssembler(newFakeChain())
	bp := scenario(owner)
	bp.Metadata.AdditionalMetadata = []token2022.Field{{Key: "description", Value: "fees"}}

	first, err := assembler.Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)
	second, err := assembler.Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)
	assert.Equal(t, first.Kinds(), second.Kinds())
	assert.Equal(t, first.Instructions(), second.Instructions())
	assert.Equal(t, StepUpdateMetadataField, first.Steps[6].Kind)
}

func TestAssembler_ReserveOnly(t *testing.T) {
	setup(t)
	owner := solana.NewWallet().PublicKey()
	mintKey := solana.NewWallet().PublicKey()
	assembler := NewAssembler(newFakeChain())
	bp := &Blueprint{
		Name:          "Guarded",
		Symbol:        "GRD",
		Owner:         owner,
		MintAuthority: owner,
		Extensions: []token2022.Extension{
			token2022.NonTransferable{},
			token2022.ReservedExtension{Kind: token2022.ExtensionCpiGuard},
		},
	}

	_, err := assembler.Assemble(context.Background(), bp, mintKey)
	require.ErrorIs(t, err, ErrNoInitializer)

	bp.ReserveUninitialized = true
	plan, err := assembler.Assemble(context.Background(), bp, mintKey)
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepAllocate, StepAnnotate, StepInitExtension, StepInitMint}, plan.Kinds())
	assert.Equal(t, []token2022.ExtensionType{token2022.ExtensionCpiGuard}, plan.Skipped)
	assert.Equal(t, 165+1+4+(4+1), plan.Size.MintSpace)
}

func TestCalculator_SizeCountsEveryKind(t *testing.T) {
	calculator := NewCalculator(newFakeChain())
	owner := solana.NewWallet().PublicKey()
	kinds := []token2022.ExtensionType{
		token2022.ExtensionTransferFeeConfig,
		token2022.ExtensionMemoTransfer,
		token2022.ExtensionInterestBearingConfig,
		token2022.ExtensionConfidentialTransferMint,
	}
	bp := &Blueprint{Name: "n", Symbol: "s", Owner: owner, MintAuthority: owner, ReserveUninitialized: true}
	expected := 165 + 1
	for _, kind := range kinds {
		bp.Extensions = append(bp.Extensions, token2022.ReservedExtension{Kind: kind})
		length, err := kind.Len()
		require.NoError(t, err)
		expected += 4 + length
		report, err := calculator.Size(bp)
		require.NoError(t, err)
		assert.Equal(t, expected, report.MintSpace)
		assert.Equal(t, expected, report.Total)
	}

	report, err := calculator.Size(&Blueprint{})
	require.NoError(t, err)
	assert.Equal(t, SizeReport{MintSpace: 82, Total: 82}, report)
}

func TestBlueprint_Validate(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	valid := func() *Blueprint {
		return &Blueprint{Name: "n", Symbol: "s", Decimals: 9, TotalSupply: 1, Owner: owner, MintAuthority: owner}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(bp *Blueprint){
		"empty name":       func(bp *Blueprint) { bp.Name = "" },
		"empty symbol":     func(bp *Blueprint) { bp.Symbol = "" },
		"no owner":         func(bp *Blueprint) { bp.Owner = solana.PublicKey{} },
		"no mint auth":     func(bp *Blueprint) { bp.MintAuthority = solana.PublicKey{} },
		"decimals":         func(bp *Blueprint) { bp.Decimals = 19 },
		"metadata uri":     func(bp *Blueprint) { bp.Metadata = &token2022.TokenMetadata{Name: "n"} },
		"duplicate":        func(bp *Blueprint) { bp.Extensions = []token2022.Extension{token2022.NonTransferable{}, token2022.NonTransferable{}} },
		"uninitialized da": func(bp *Blueprint) { bp.Extensions = []token2022.Extension{token2022.DefaultAccountState{}} },
	}
	for name, mutate := range cases {
		bp := valid()
		mutate(bp)
		assert.ErrorIs(t, bp.Validate(), ErrInvalidBlueprint, name)
	}

	bp := valid()
	bp.Extensions = []token2022.Extension{token2022.ReservedExtension{Kind: token2022.ExtensionType(99)}}
	bp.ReserveUninitialized = true
	assert.ErrorIs(t, bp.Validate(), token2022.ErrUnknownExtension)
}

func TestBlueprint_RawSupply(t *testing.T) {
	bp := &Blueprint{TotalSupply: 1_000_000, Decimals: 6}
	raw, err := bp.RawSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000), raw)

	bp = &Blueprint{TotalSupply: math.MaxUint64, Decimals: 0}
	raw, err = bp.RawSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), raw)

	bp = &Blueprint{TotalSupply: 18_446_744_073_709_552, Decimals: 3}
	_, err = bp.RawSupply()
	require.ErrorIs(t, err, ErrSupplyOverflow)

	bp = &Blueprint{TotalSupply: 100, Decimals: 18, SellerFeeBasisPoints: 50}
	_, err = bp.RawSupply()
	require.ErrorIs(t, err, ErrSupplyOverflow)
	assert.Equal(t, uint16(50), bp.FeeBasisPoints())
	assert.Equal(t, uint16(500), scenario(solana.NewWallet().PublicKey()).FeeBasisPoints())
}

type recorder struct {
	results []*Result
}

func (r *recorder) RecordMint(bp *Blueprint, result *Result) {
	r.results = append(r.results, result)
}

func TestCreator_Create(t *testing.T) {
	setup(t)
	owner := solana.NewWallet()
	chain := newFakeChain(owner.PublicKey())
	creator := NewCreator(chain)
	records := &recorder{}
	creator.SetRecorder(records)

	result, err := creator.Create(context.Background(), scenario(owner.PublicKey()), Options{})
	require.NoError(t, err)
	require.Len(t, chain.submitted, 1)
	assert.Len(t, chain.submitted[0], 8)
	require.Len(t, chain.extra[0], 1)
	assert.Equal(t, result.Mint, chain.extra[0][0].PublicKey())
	assert.Equal(t, uint64(77), result.Slot)
	assert.Len(t, records.results, 1)
}

func TestCreator_SecondarySigner(t *testing.T) {
	setup(t)
	owner := solana.NewWallet()
	authority := solana.NewWallet()
	chain := newFakeChain(owner.PublicKey())
	creator := NewCreator(chain)
	bp := scenario(owner.PublicKey())
	bp.MintAuthority = authority.PublicKey()

	_, err := creator.Create(context.Background(), bp, Options{})
	require.ErrorIs(t, err, ErrMissingSigner)
	assert.Empty(t, chain.submitted)

	_, err = creator.Create(context.Background(), bp, Options{Signers: []solana.PrivateKey{authority.PrivateKey}})
	require.NoError(t, err)
	assert.Len(t, chain.extra[0], 2)
}

func TestCreator_SubmitError(t *testing.T) {
	setup(t)
	owner := solana.NewWallet()
	chain := newFakeChain(owner.PublicKey())
	chain.err = errors.New("node down")
	mintKey := solana.NewWallet().PrivateKey

	_, err := NewCreator(chain).Create(context.Background(), scenario(owner.PublicKey()), Options{MintKey: &mintKey})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit: node down")
	assert.Equal(t, mintKey.PublicKey(), chain.extra[0][0].PublicKey())
}
