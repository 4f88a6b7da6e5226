package token2022

import (
	"errors"
	"fmt"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
)

const InstructionSetAuthority = uint8(6)

var (
	ErrUnknownAuthority     = errors.New("token2022: unknown authority type")
	ErrUnsupportedAuthority = errors.New("token2022: authority is not stored in the mint")
	ErrNoAuthority          = errors.New("token2022: authority is not set")
)

type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
	AuthorityTransferFeeConfig
	AuthorityWithheldWithdraw
	AuthorityCloseMint
	AuthorityInterestRate
	AuthorityPermanentDelegate
	AuthorityConfidentialTransferMint
	AuthorityTransferHookProgramId
	AuthorityConfidentialTransferFeeConfig
	AuthorityMetadataPointer
	AuthorityGroupPointer
	AuthorityGroupMemberPointer
)

var authorityNames = []string{
	"mint_tokens",
	"freeze_account",
	"account_owner",
	"close_account",
	"transfer_fee_config",
	"withheld_withdraw",
	"close_mint",
	"interest_rate",
	"permanent_delegate",
	"confidential_transfer_mint",
	"transfer_hook_program_id",
	"confidential_transfer_fee_config",
	"metadata_pointer",
	"group_pointer",
	"group_member_pointer",
}

func (t AuthorityType) String() string {
	if int(t) < len(authorityNames) {
		return authorityNames[t]
	}
	return fmt.Sprintf("authority(%d)", uint8(t))
}

func ParseAuthorityType(name string) (AuthorityType, error) {
	for i, n := range authorityNames {
		if n == name {
			return AuthorityType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAuthority, name)
}

// authorityField locates an extension authority: the extension that holds
// it and its byte offset in the extension value.
type authorityField struct {
	extension ExtensionType
	offset    int
}

var authorityFields = map[AuthorityType]authorityField{
	AuthorityTransferFeeConfig:     {ExtensionTransferFeeConfig, 0},
	AuthorityWithheldWithdraw:      {ExtensionTransferFeeConfig, 32},
	AuthorityCloseMint:             {ExtensionMintCloseAuthority, 0},
	AuthorityInterestRate:          {ExtensionInterestBearingConfig, 0},
	AuthorityPermanentDelegate:     {ExtensionPermanentDelegate, 0},
	AuthorityTransferHookProgramId: {ExtensionTransferHook, 0},
	AuthorityMetadataPointer:       {ExtensionMetadataPointer, 0},
	AuthorityGroupPointer:          {ExtensionGroupPointer, 0},
	AuthorityGroupMemberPointer:    {ExtensionGroupMemberPointer, 0},
}

// Authority reads the current holder of authority t from the mint. An unset
// authority is ErrNoAuthority.
func (m *KeyedMint) Authority(t AuthorityType) (solana.PublicKey, error) {
	var key solana.PublicKey
	switch t {
	case AuthorityMintTokens:
		if m.MintAuthorityOption[0] == 1 {
			key = m.MintAuthority
		}
	case AuthorityFreezeAccount:
		if m.FreezeAuthorityOption[0] == 1 {
			key = m.FreezeAuthority
		}
	default:
		field, ok := authorityFields[t]
		if !ok {
			return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrUnsupportedAuthority, t)
		}
		value, ok := m.Extensions[field.extension]
		if !ok {
			return solana.PublicKey{}, fmt.Errorf("%w: mint(%s) %s", ErrExtensionMissing, m.Key, field.extension)
		}
		if len(value) < field.offset+32 {
			return solana.PublicKey{}, fmt.Errorf("%w: mint(%s) %s", ErrInvalidAccountData, m.Key, field.extension)
		}
		key = solana.PublicKeyFromBytes(value[field.offset : field.offset+32])
	}
	if key.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: mint(%s) %s", ErrNoAuthority, m.Key, t)
	}
	return key, nil
}

// InstructionSetAuthority moves authority t of account to newAuthority, or
// revokes it when newAuthority is nil.
func (p *Program) InstructionSetAuthority(account solana.PublicKey, current solana.PublicKey, t AuthorityType, newAuthority *solana.PublicKey) solana.Instruction {
	data := appendOptionalKey([]byte{InstructionSetAuthority, uint8(t)}, newAuthority)
	return program.NewInstruction(p.id, data,
		program.Writable(account),
		program.Signer(current, false),
	)
}
