package mint

import (
	"context"
	"fmt"
	"log"

	"github.com/egaotan/solana-token2022/ata"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/memo"
	"github.com/egaotan/solana-token2022/program"
	"github.com/egaotan/solana-token2022/system"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
)

type StepKind int

const (
	StepAllocate StepKind = iota
	StepAnnotate
	StepInitExtension
	StepInitMint
	StepWriteMetadata
	StepUpdateMetadataField
	StepCreateATA
	StepThaw
	StepMintTo
)

func (k StepKind) String() string {
	switch k {
	case StepAllocate:
		return "allocate"
	case StepAnnotate:
		return "annotate"
	case StepInitExtension:
		return "init-extension"
	case StepInitMint:
		return "init-mint"
	case StepWriteMetadata:
		return "write-metadata"
	case StepUpdateMetadataField:
		return "update-metadata-field"
	case StepCreateATA:
		return "create-ata"
	case StepThaw:
		return "thaw"
	case StepMintTo:
		return "mint-to"
	}
	return fmt.Sprintf("step(%d)", int(k))
}

type Step struct {
	Kind StepKind
	// Extension is set for StepInitExtension.
	Extension   token2022.ExtensionType
	Instruction solana.Instruction
}

// Plan is the ordered instruction sequence for one mint. It executes once.
type Plan struct {
	Mint      solana.PublicKey
	Steps     []*Step
	Size      SizeReport
	Rent      uint64
	RawSupply uint64
	// OwnerAccount is the owner's token account when the supply is minted.
	OwnerAccount solana.PublicKey
	Signers      []solana.PublicKey
	Skipped      []token2022.ExtensionType
}

func (p *Plan) Instructions() []solana.Instruction {
	ins := make([]solana.Instruction, 0, len(p.Steps))
	for _, step := range p.Steps {
		ins = append(ins, step.Instruction)
	}
	return ins
}

func (p *Plan) Kinds() []StepKind {
	kinds := make([]StepKind, 0, len(p.Steps))
	for _, step := range p.Steps {
		kinds = append(kinds, step.Kind)
	}
	return kinds
}

func (p *Plan) add(kind StepKind, in solana.Instruction) {
	p.Steps = append(p.Steps, &Step{Kind: kind, Instruction: in})
}

func (p *Plan) requireSigner(key solana.PublicKey) {
	for _, signer := range p.Signers {
		if signer == key {
			return
		}
	}
	p.Signers = append(p.Signers, key)
}

type Assembler struct {
	logger     *log.Logger
	calculator *Calculator
	system     *system.Program
	memo       *memo.Program
	token      *token2022.Program
	ata        *ata.Program
}

func NewAssembler(rent RentSource) *Assembler {
	return &Assembler{
		logger:     utils.NewLog(config.LogPath, config.MintLog),
		calculator: NewCalculator(rent),
		system:     system.NewProgram(),
		memo:       memo.NewProgram(),
		token:      token2022.NewProgram(),
		ata:        ata.NewProgram(program.Token2022),
	}
}

func (a *Assembler) Calculator() *Calculator {
	return a.calculator
}

// Assemble turns bp into the creation sequence for mintKey. Extension
// initializers sit between allocation and mint initialization; everything
// that needs an initialized mint comes after it. The rent query is the only
// network call.
func (a *Assembler) Assemble(ctx context.Context, bp *Blueprint, mintKey solana.PublicKey) (*Plan, error) {
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	report, lamports, err := a.calculator.Rent(ctx, bp)
	if err != nil {
		return nil, err
	}
	raw, err := bp.RawSupply()
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Mint:      mintKey,
		Size:      report,
		Rent:      lamports,
		RawSupply: raw,
	}
	plan.requireSigner(bp.Owner)
	plan.requireSigner(mintKey)

	plan.add(StepAllocate, a.system.InstructionCreateAccount(bp.Owner, mintKey, lamports, uint64(report.MintSpace), program.Token2022))
	plan.add(StepAnnotate, a.memo.InstructionMemo(bp.Name))

	for _, ext := range bp.Extensions {
		in, err := a.initializer(bp, mintKey, ext)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.Type(), err)
		}
		if in == nil {
			a.logger.Printf("mint %s: extension %s has no initializer, space reserved only", mintKey, ext.Type())
			plan.Skipped = append(plan.Skipped, ext.Type())
			continue
		}
		plan.Steps = append(plan.Steps, &Step{Kind: StepInitExtension, Extension: ext.Type(), Instruction: in})
	}

	plan.add(StepInitMint, a.token.InstructionInitializeMint(mintKey, bp.Decimals, bp.MintAuthority, bp.FreezeAuthority))

	if bp.Metadata != nil {
		if err := a.metadata(plan, bp, mintKey); err != nil {
			return nil, err
		}
	}

	if bp.MintTotalSupply {
		account, err := a.ata.Address(bp.Owner, mintKey)
		if err != nil {
			return nil, fmt.Errorf("owner token account: %w", err)
		}
		plan.OwnerAccount = account
		plan.add(StepCreateATA, a.ata.InstructionCreate(bp.Owner, account, bp.Owner, mintKey, true))
		if bp.DefaultFrozen() {
			plan.add(StepThaw, a.token.InstructionThawAccount(account, mintKey, *bp.FreezeAuthority))
			plan.requireSigner(*bp.FreezeAuthority)
		}
		plan.add(StepMintTo, a.token.InstructionMintTo(mintKey, account, bp.MintAuthority, raw))
		plan.requireSigner(bp.MintAuthority)
	}
	a.logger.Printf("mint %s assembled: %d steps, space %d+%d, rent %d", mintKey, len(plan.Steps), report.MintSpace, report.MetadataSpace, lamports)
	return plan, nil
}

func orKey(key *solana.PublicKey, fallback solana.PublicKey) *solana.PublicKey {
	if key != nil {
		return key
	}
	return &fallback
}

// initializer maps one extension to its init instruction. Reserve-only kinds
// return nil.
func (a *Assembler) initializer(bp *Blueprint, mintKey solana.PublicKey, ext token2022.Extension) (solana.Instruction, error) {
	switch e := ext.(type) {
	case token2022.TransferFeeConfig:
		return a.token.InstructionInitializeTransferFeeConfig(mintKey,
			orKey(e.ConfigAuthority, bp.MintAuthority), orKey(e.WithdrawAuthority, bp.MintAuthority),
			e.FeeBasisPoints, e.MaximumFee), nil
	case token2022.InterestBearingConfig:
		return a.token.InstructionInitializeInterestBearingMint(mintKey, *orKey(e.RateAuthority, bp.Owner), e.Rate), nil
	case token2022.DefaultAccountState:
		return a.token.InstructionInitializeDefaultAccountState(mintKey, e.State), nil
	case token2022.PermanentDelegate:
		if e.Delegate.IsZero() {
			return nil, fmt.Errorf("%w: permanent delegate is not set", ErrInvalidBlueprint)
		}
		return a.token.InstructionInitializePermanentDelegate(mintKey, e.Delegate), nil
	case token2022.MintCloseAuthority:
		return a.token.InstructionInitializeMintCloseAuthority(mintKey, orKey(e.CloseAuthority, bp.MintAuthority)), nil
	case token2022.NonTransferable:
		return a.token.InstructionInitializeNonTransferableMint(mintKey), nil
	case token2022.MetadataPointer:
		return a.token.InstructionInitializeMetadataPointer(mintKey, orKey(e.Authority, bp.MintAuthority), orKey(e.MetadataAddress, mintKey)), nil
	case token2022.TransferHook:
		return a.token.InstructionInitializeTransferHook(mintKey, orKey(e.Authority, bp.MintAuthority), e.ProgramID), nil
	case token2022.GroupPointer:
		return a.token.InstructionInitializeGroupPointer(mintKey, orKey(e.Authority, bp.MintAuthority), orKey(e.GroupAddress, mintKey)), nil
	case token2022.GroupMemberPointer:
		return a.token.InstructionInitializeGroupMemberPointer(mintKey, orKey(e.Authority, bp.MintAuthority), orKey(e.MemberAddress, mintKey)), nil
	}
	if bp.ReserveUninitialized {
		return nil, nil
	}
	return nil, ErrNoInitializer
}

// metadata writes the overlay into the mint itself with the mint authority
// as update authority.
func (a *Assembler) metadata(plan *Plan, bp *Blueprint, mintKey solana.PublicKey) error {
	meta := bp.Metadata
	in, err := a.token.InstructionInitializeTokenMetadata(mintKey, bp.MintAuthority, mintKey, bp.MintAuthority, meta.Name, meta.Symbol, meta.Uri)
	if err != nil {
		return err
	}
	plan.add(StepWriteMetadata, in)
	for _, field := range meta.AdditionalMetadata {
		in, err := a.token.InstructionUpdateTokenMetadataField(mintKey, bp.MintAuthority, token2022.MetadataFieldKey, field.Key, field.Value)
		if err != nil {
			return err
		}
		plan.add(StepUpdateMetadataField, in)
	}
	plan.requireSigner(bp.MintAuthority)
	return nil
}
