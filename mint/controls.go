package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/egaotan/solana-token2022/ata"
	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/memo"
	"github.com/egaotan/solana-token2022/program"
	"github.com/egaotan/solana-token2022/system"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	ErrNothingToUpdate = errors.New("mint: metadata already matches")
	ErrNoMetadata      = errors.New("mint: mint carries no token metadata")
)

// Chain is what the controller needs on top of submission: reading the mint
// and the caller's identity.
type Chain interface {
	Submitter
	Account(ctx context.Context, key solana.PublicKey) (*backend.Account, error)
	HasAccount(ctx context.Context, key solana.PublicKey) (bool, error)
	Player() solana.PublicKey
}

// Controller changes mints that already exist: authorities, supply and
// metadata. Every operation is one transaction.
type Controller struct {
	logger *log.Logger
	chain  Chain
	token  *token2022.Program
	ata    *ata.Program
	system *system.Program
	memo   *memo.Program
}

func NewController(chain Chain) *Controller {
	return &Controller{
		logger: utils.NewLog(config.LogPath, config.MintLog),
		chain:  chain,
		token:  token2022.NewProgram(),
		ata:    ata.NewProgram(program.Token2022),
		system: system.NewProgram(),
		memo:   memo.NewProgram(),
	}
}

type Change struct {
	Mint      solana.PublicKey `json:"mint"`
	Signature solana.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	// Account is the token account minted to.
	Account solana.PublicKey `json:"account,omitempty"`
	// Amount is the raw amount minted.
	Amount uint64 `json:"amount,omitempty"`
	// TopUp is the lamports sent to keep a grown mint rent exempt.
	TopUp uint64 `json:"top_up,omitempty"`
}

func (c *Controller) mint(ctx context.Context, key solana.PublicKey) (*backend.Account, *token2022.KeyedMint, error) {
	account, err := c.chain.Account(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read mint %s: %w", key, err)
	}
	keyed, err := c.token.ParseMint(account)
	if err != nil {
		return nil, nil, err
	}
	return account, keyed, nil
}

// signerFor picks who signs for authority: nobody extra when the caller
// holds it, otherwise the secondary signer with the matching key.
func (c *Controller) signerFor(authority solana.PublicKey, signers []solana.PrivateKey) ([]solana.PrivateKey, error) {
	if authority == c.chain.Player() || c.chain.HasSigner(authority) {
		return nil, nil
	}
	for _, signer := range signers {
		if signer.PublicKey() == authority {
			return []solana.PrivateKey{signer}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingSigner, authority)
}

func (c *Controller) submit(ctx context.Context, mintKey solana.PublicKey, ins []solana.Instruction, signers []solana.PrivateKey) (*Change, error) {
	receipt, err := c.chain.Submit(ctx, ins, signers...)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	return &Change{Mint: mintKey, Signature: receipt.Signature, Slot: receipt.Slot}, nil
}

// SetAuthority moves authority t of the mint to newAuthority. A nil
// newAuthority revokes it for good.
func (c *Controller) SetAuthority(ctx context.Context, mintKey solana.PublicKey, t token2022.AuthorityType, newAuthority *solana.PublicKey, signers ...solana.PrivateKey) (*Change, error) {
	_, keyed, err := c.mint(ctx, mintKey)
	if err != nil {
		return nil, err
	}
	current, err := keyed.Authority(t)
	if err != nil {
		return nil, err
	}
	extra, err := c.signerFor(current, signers)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	change, err := c.submit(ctx, mintKey, []solana.Instruction{c.token.InstructionSetAuthority(mintKey, current, t, newAuthority)}, extra)
	if err != nil {
		return nil, err
	}
	if newAuthority == nil {
		c.logger.Printf("mint %s %s revoked from %s, signature %s", mintKey, t, current, change.Signature)
	} else {
		c.logger.Printf("mint %s %s moved from %s to %s, signature %s", mintKey, t, current, *newAuthority, change.Signature)
	}
	return change, nil
}

func (c *Controller) RevokeAuthority(ctx context.Context, mintKey solana.PublicKey, t token2022.AuthorityType, signers ...solana.PrivateKey) (*Change, error) {
	return c.SetAuthority(ctx, mintKey, t, nil, signers...)
}

// MintTo mints amount whole tokens to the owner's associated token account,
// creating it when missing. A new account of a default-frozen mint is thawed
// by the freeze authority first.
func (c *Controller) MintTo(ctx context.Context, mintKey solana.PublicKey, amount uint64, owner *solana.PublicKey, signers ...solana.PrivateKey) (*Change, error) {
	_, keyed, err := c.mint(ctx, mintKey)
	if err != nil {
		return nil, err
	}
	raw, err := scale(amount, keyed.Decimals)
	if err != nil {
		return nil, err
	}
	authority, err := keyed.Authority(token2022.AuthorityMintTokens)
	if err != nil {
		return nil, err
	}
	extra, err := c.signerFor(authority, signers)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	caller := c.chain.Player()
	holder := caller
	if owner != nil {
		holder = *owner
	}
	account, err := c.ata.Address(holder, mintKey)
	if err != nil {
		return nil, err
	}
	exists, err := c.chain.HasAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("check account %s: %w", account, err)
	}
	ins := make([]solana.Instruction, 0, 3)
	if !exists {
		ins = append(ins, c.ata.InstructionCreate(caller, account, holder, mintKey, true))
		if frozenByDefault(keyed) {
			freeze, err := keyed.Authority(token2022.AuthorityFreezeAccount)
			if err != nil {
				return nil, err
			}
			thaw, err := c.signerFor(freeze, signers)
			if err != nil {
				return nil, fmt.Errorf("authority: %w", err)
			}
			extra = appendSigners(extra, thaw)
			ins = append(ins, c.token.InstructionThawAccount(account, mintKey, freeze))
		}
	}
	ins = append(ins, c.token.InstructionMintTo(mintKey, account, authority, raw))
	change, err := c.submit(ctx, mintKey, ins, extra)
	if err != nil {
		return nil, err
	}
	change.Account = account
	change.Amount = raw
	c.logger.Printf("mint %s minted %d to %s, signature %s", mintKey, raw, account, change.Signature)
	return change, nil
}

func frozenByDefault(keyed *token2022.KeyedMint) bool {
	value, ok := keyed.Extensions[token2022.ExtensionDefaultAccountState]
	return ok && len(value) == 1 && token2022.AccountState(value[0]) == token2022.AccountStateFrozen
}

func appendSigners(signers []solana.PrivateKey, more []solana.PrivateKey) []solana.PrivateKey {
	for _, signer := range more {
		found := false
		for _, s := range signers {
			if s.PublicKey() == signer.PublicKey() {
				found = true
				break
			}
		}
		if !found {
			signers = append(signers, signer)
		}
	}
	return signers
}

// scale converts whole tokens to raw units.
func scale(amount uint64, decimals uint8) (uint64, error) {
	raw := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), int32(decimals))
	if raw.GreaterThan(maxRawSupply) {
		return 0, fmt.Errorf("%w: %d tokens with %d decimals", ErrSupplyOverflow, amount, decimals)
	}
	return raw.BigInt().Uint64(), nil
}

// MetadataUpdate lists the metadata changes to make. Empty strings and a nil
// UpdateAuthority leave the current values alone.
type MetadataUpdate struct {
	Name   string            `json:"name" yaml:"name"`
	Symbol string            `json:"symbol" yaml:"symbol"`
	Uri    string            `json:"uri" yaml:"uri"`
	Fields []token2022.Field `json:"fields" yaml:"fields"`
	// UpdateAuthority moves the metadata to a new update authority.
	UpdateAuthority *solana.PublicKey `json:"update_authority" yaml:"update_authority"`
	// Immutable drops the update authority.
	Immutable bool `json:"immutable" yaml:"immutable"`
}

// UpdateMetadata rewrites the metadata stored in the mint. A rename is
// annotated with a memo. When the packed metadata grows, the caller tops the
// mint up to the new rent-exempt minimum in the same transaction.
func (c *Controller) UpdateMetadata(ctx context.Context, mintKey solana.PublicKey, update *MetadataUpdate, signers ...solana.PrivateKey) (*Change, error) {
	account, keyed, err := c.mint(ctx, mintKey)
	if err != nil {
		return nil, err
	}
	current, err := keyed.TokenMetadata()
	if errors.Is(err, token2022.ErrExtensionMissing) {
		return nil, fmt.Errorf("%w: %s", ErrNoMetadata, mintKey)
	}
	if err != nil {
		return nil, err
	}
	authority := current.UpdateAuthority
	if authority.IsZero() {
		return nil, fmt.Errorf("%w: mint(%s) metadata update authority", token2022.ErrNoAuthority, mintKey)
	}
	extra, err := c.signerFor(authority, signers)
	if err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}

	next := *current
	next.AdditionalMetadata = append([]token2022.Field{}, current.AdditionalMetadata...)
	updates := make([]solana.Instruction, 0)
	set := func(field token2022.MetadataField, key string, value string) error {
		if value == "" || value == next.Field(field, key) {
			return nil
		}
		in, err := c.token.InstructionUpdateTokenMetadataField(mintKey, authority, field, key, value)
		if err != nil {
			return err
		}
		if field == token2022.MetadataFieldName {
			updates = append(updates, c.memo.InstructionMemo(value))
		}
		updates = append(updates, in)
		next.Set(field, key, value)
		return nil
	}
	if err := set(token2022.MetadataFieldName, "", update.Name); err != nil {
		return nil, err
	}
	if err := set(token2022.MetadataFieldSymbol, "", update.Symbol); err != nil {
		return nil, err
	}
	if err := set(token2022.MetadataFieldUri, "", update.Uri); err != nil {
		return nil, err
	}
	for _, field := range update.Fields {
		if field.Key == "" {
			return nil, fmt.Errorf("%w: metadata field without key", ErrInvalidBlueprint)
		}
		if err := set(token2022.MetadataFieldKey, field.Key, field.Value); err != nil {
			return nil, err
		}
	}
	switch {
	case update.Immutable:
		updates = append(updates, c.token.InstructionUpdateTokenMetadataAuthority(mintKey, authority, nil))
	case update.UpdateAuthority != nil && *update.UpdateAuthority != authority:
		updates = append(updates, c.token.InstructionUpdateTokenMetadataAuthority(mintKey, authority, update.UpdateAuthority))
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToUpdate, mintKey)
	}

	topUp, err := c.topUp(ctx, account, current, &next)
	if err != nil {
		return nil, err
	}
	ins := make([]solana.Instruction, 0, len(updates)+1)
	if topUp > 0 {
		ins = append(ins, c.system.InstructionTransfer(c.chain.Player(), mintKey, topUp))
	}
	ins = append(ins, updates...)
	change, err := c.submit(ctx, mintKey, ins, extra)
	if err != nil {
		return nil, err
	}
	change.TopUp = topUp
	c.logger.Printf("mint %s metadata updated with %d instructions, top up %d, signature %s", mintKey, len(updates), topUp, change.Signature)
	return change, nil
}

// topUp is the lamports the mint lacks once its metadata is repacked as next.
func (c *Controller) topUp(ctx context.Context, account *backend.Account, current *token2022.TokenMetadata, next *token2022.TokenMetadata) (uint64, error) {
	before, err := current.Space()
	if err != nil {
		return 0, err
	}
	after, err := next.Space()
	if err != nil {
		return 0, err
	}
	if after <= before {
		return 0, nil
	}
	size := len(account.Account.Data.GetBinary()) - before + after
	rent, err := c.chain.GetMinimumBalanceForRentExemption(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("rent: %w", err)
	}
	if rent <= account.Account.Lamports {
		return 0, nil
	}
	return rent - account.Account.Lamports, nil
}
