package token2022

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrUnknownExtension   = errors.New("token2022: unknown extension type")
	ErrInvalidAccountData = errors.New("token2022: invalid account data")
)

type ExtensionType uint16

const (
	ExtensionUninitialized ExtensionType = iota
	ExtensionTransferFeeConfig
	ExtensionTransferFeeAmount
	ExtensionMintCloseAuthority
	ExtensionConfidentialTransferMint
	ExtensionConfidentialTransferAccount
	ExtensionDefaultAccountState
	ExtensionImmutableOwner
	ExtensionMemoTransfer
	ExtensionNonTransferable
	ExtensionInterestBearingConfig
	ExtensionCpiGuard
	ExtensionPermanentDelegate
	ExtensionNonTransferableAccount
	ExtensionTransferHook
	ExtensionTransferHookAccount
)

const (
	ExtensionMetadataPointer    ExtensionType = 18
	ExtensionTokenMetadata      ExtensionType = 19
	ExtensionGroupPointer       ExtensionType = 20
	ExtensionGroupMemberPointer ExtensionType = 22
)

type catalogEntry struct {
	name        string
	length      int
	initializer bool
}

// catalog holds the fixed TLV value length of every extension the engine
// knows. The length is reserved whether or not an initializer exists.
var catalog = map[ExtensionType]catalogEntry{
	ExtensionTransferFeeConfig:           {"transfer_fee_config", 108, true},
	ExtensionTransferFeeAmount:           {"transfer_fee_amount", 8, false},
	ExtensionMintCloseAuthority:          {"mint_close_authority", 32, true},
	ExtensionConfidentialTransferMint:    {"confidential_transfer_mint", 65, false},
	ExtensionConfidentialTransferAccount: {"confidential_transfer_account", 295, false},
	ExtensionDefaultAccountState:         {"default_account_state", 1, true},
	ExtensionImmutableOwner:              {"immutable_owner", 0, false},
	ExtensionMemoTransfer:                {"memo_transfer", 1, false},
	ExtensionNonTransferable:             {"non_transferable", 0, true},
	ExtensionInterestBearingConfig:       {"interest_bearing_config", 52, true},
	ExtensionCpiGuard:                    {"cpi_guard", 1, false},
	ExtensionPermanentDelegate:           {"permanent_delegate", 32, true},
	ExtensionNonTransferableAccount:      {"non_transferable_account", 0, false},
	ExtensionTransferHook:                {"transfer_hook", 64, true},
	ExtensionTransferHookAccount:         {"transfer_hook_account", 1, false},
	ExtensionMetadataPointer:             {"metadata_pointer", 64, true},
	ExtensionGroupPointer:                {"group_pointer", 64, true},
	ExtensionGroupMemberPointer:          {"group_member_pointer", 64, true},
}

func (t ExtensionType) String() string {
	if entry, ok := catalog[t]; ok {
		return entry.name
	}
	return fmt.Sprintf("extension(%d)", uint16(t))
}

// Len is the TLV value length of t, excluding the 4 byte type/length header.
func (t ExtensionType) Len() (int, error) {
	entry, ok := catalog[t]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownExtension, uint16(t))
	}
	return entry.length, nil
}

func (t ExtensionType) HasInitializer() bool {
	return catalog[t].initializer
}

func ParseExtensionType(name string) (ExtensionType, error) {
	for t, entry := range catalog {
		if entry.name == name {
			return t, nil
		}
	}
	return ExtensionUninitialized, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
}

// MintLen is the account size of a mint carrying the given extensions.
// Duplicates are counted once.
func MintLen(types []ExtensionType) (int, error) {
	if len(types) == 0 {
		return MintLayoutSize, nil
	}
	seen := make(map[ExtensionType]bool, len(types))
	size := AccountLayoutSize + AccountTypeSize
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		length, err := t.Len()
		if err != nil {
			return 0, err
		}
		size += TLVTypeSize + TLVLengthSize + length
	}
	// a mint must never be mistaken for a multisig account
	if size == MultisigLayoutSize {
		size += TLVTypeSize
	}
	return size, nil
}

// Extension is one configured extension of a mint blueprint. Each variant
// carries the fields its initializer needs.
type Extension interface {
	Type() ExtensionType
}

type TransferFeeConfig struct {
	FeeBasisPoints    uint16
	MaximumFee        uint64
	ConfigAuthority   *solana.PublicKey
	WithdrawAuthority *solana.PublicKey
}

func (TransferFeeConfig) Type() ExtensionType { return ExtensionTransferFeeConfig }

// InterestBearingConfig accrues interest at Rate basis points per year.
type InterestBearingConfig struct {
	Rate          int16
	RateAuthority *solana.PublicKey
}

func (InterestBearingConfig) Type() ExtensionType { return ExtensionInterestBearingConfig }

type DefaultAccountState struct {
	State AccountState
}

func (DefaultAccountState) Type() ExtensionType { return ExtensionDefaultAccountState }

type PermanentDelegate struct {
	Delegate solana.PublicKey
}

func (PermanentDelegate) Type() ExtensionType { return ExtensionPermanentDelegate }

type MintCloseAuthority struct {
	CloseAuthority *solana.PublicKey
}

func (MintCloseAuthority) Type() ExtensionType { return ExtensionMintCloseAuthority }

type NonTransferable struct{}

func (NonTransferable) Type() ExtensionType { return ExtensionNonTransferable }

// MetadataPointer points at the account holding token metadata. A nil
// MetadataAddress points the mint at itself.
type MetadataPointer struct {
	Authority       *solana.PublicKey
	MetadataAddress *solana.PublicKey
}

func (MetadataPointer) Type() ExtensionType { return ExtensionMetadataPointer }

type TransferHook struct {
	Authority *solana.PublicKey
	ProgramID solana.PublicKey
}

func (TransferHook) Type() ExtensionType { return ExtensionTransferHook }

type GroupPointer struct {
	Authority    *solana.PublicKey
	GroupAddress *solana.PublicKey
}

func (GroupPointer) Type() ExtensionType { return ExtensionGroupPointer }

type GroupMemberPointer struct {
	Authority     *solana.PublicKey
	MemberAddress *solana.PublicKey
}

func (GroupMemberPointer) Type() ExtensionType { return ExtensionGroupMemberPointer }

// ReservedExtension reserves space for a catalog kind without configuring it.
type ReservedExtension struct {
	Kind ExtensionType
}

func (e ReservedExtension) Type() ExtensionType { return e.Kind }
