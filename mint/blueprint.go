package mint

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const MaxDecimals = 18

var (
	ErrInvalidBlueprint = errors.New("mint: invalid blueprint")
	ErrNoInitializer    = errors.New("mint: extension has no initializer")
	ErrSupplyOverflow   = errors.New("mint: total supply overflows u64")
)

var maxRawSupply = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// Blueprint describes a token to be created. It is consumed once by the
// calculator and the assembler.
type Blueprint struct {
	Name     string
	Symbol   string
	Decimals uint8
	// TotalSupply is in whole tokens.
	TotalSupply     uint64
	Owner           solana.PublicKey
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
	// Extensions hold the value variants of token2022.Extension.
	Extensions      []token2022.Extension
	Metadata        *token2022.TokenMetadata
	MintTotalSupply bool
	// SellerFeeBasisPoints is display only and follows the transfer fee when
	// one is configured.
	SellerFeeBasisPoints uint16
	ReserveUninitialized bool
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidBlueprint, fmt.Sprintf(format, args...))
}

func (bp *Blueprint) Validate() error {
	if bp.Name == "" {
		return invalid("name is empty")
	}
	if bp.Symbol == "" {
		return invalid("symbol is empty")
	}
	if bp.Owner.IsZero() {
		return invalid("owner is not set")
	}
	if bp.MintAuthority.IsZero() {
		return invalid("mint authority is not set")
	}
	if bp.Decimals > MaxDecimals {
		return invalid("decimals %d > %d", bp.Decimals, MaxDecimals)
	}
	if bp.Metadata != nil && bp.Metadata.Uri == "" {
		return invalid("metadata uri is empty")
	}
	seen := make(map[token2022.ExtensionType]bool, len(bp.Extensions))
	for _, ext := range bp.Extensions {
		if ext == nil {
			return invalid("nil extension")
		}
		kind := ext.Type()
		if _, err := kind.Len(); err != nil {
			return err
		}
		if seen[kind] {
			return invalid("duplicate extension %s", kind)
		}
		seen[kind] = true
		if reserveOnly(ext) && !bp.ReserveUninitialized {
			return fmt.Errorf("%w: %s", ErrNoInitializer, kind)
		}
		if state, ok := ext.(token2022.DefaultAccountState); ok {
			if err := bp.checkDefaultState(state.State); err != nil {
				return err
			}
		}
	}
	if _, err := bp.RawSupply(); err != nil {
		return err
	}
	return nil
}

func (bp *Blueprint) checkDefaultState(state token2022.AccountState) error {
	switch state {
	case token2022.AccountStateInitialized:
		return nil
	case token2022.AccountStateFrozen:
		if bp.FreezeAuthority == nil {
			return invalid("default frozen accounts need a freeze authority")
		}
		return nil
	}
	return invalid("default account state %s", state)
}

// reserveOnly reports whether ext only reserves bytes without an initializer.
func reserveOnly(ext token2022.Extension) bool {
	if _, ok := ext.(token2022.ReservedExtension); ok {
		return true
	}
	return !ext.Type().HasInitializer()
}

// DefaultFrozen reports whether accounts of the mint start frozen.
func (bp *Blueprint) DefaultFrozen() bool {
	for _, ext := range bp.Extensions {
		if e, ok := ext.(token2022.DefaultAccountState); ok {
			return e.State == token2022.AccountStateFrozen
		}
	}
	return false
}

// RawSupply is TotalSupply scaled by 10^Decimals.
func (bp *Blueprint) RawSupply() (uint64, error) {
	return scale(bp.TotalSupply, bp.Decimals)
}

// FeeBasisPoints is the display fee: the transfer fee when one is configured,
// SellerFeeBasisPoints otherwise.
func (bp *Blueprint) FeeBasisPoints() uint16 {
	for _, ext := range bp.Extensions {
		if e, ok := ext.(token2022.TransferFeeConfig); ok {
			return e.FeeBasisPoints
		}
	}
	return bp.SellerFeeBasisPoints
}

// ExtensionTypes lists the kinds of the blueprint in order.
func (bp *Blueprint) ExtensionTypes() []token2022.ExtensionType {
	types := make([]token2022.ExtensionType, 0, len(bp.Extensions))
	for _, ext := range bp.Extensions {
		types = append(types, ext.Type())
	}
	return types
}
