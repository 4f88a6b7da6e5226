package token2022

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/program"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	InstructionInitializeMint                = uint8(0)
	InstructionMintTo                        = uint8(7)
	InstructionThawAccount                   = uint8(11)
	InstructionInitializeMintCloseAuthority  = uint8(25)
	InstructionTransferFeeExtension          = uint8(26)
	InstructionDefaultAccountStateExtension  = uint8(28)
	InstructionInitializeNonTransferableMint = uint8(32)
	InstructionInterestBearingMintExtension  = uint8(33)
	InstructionInitializePermanentDelegate   = uint8(35)
	InstructionTransferHookExtension         = uint8(36)
	InstructionMetadataPointerExtension      = uint8(39)
	InstructionGroupPointerExtension         = uint8(40)
	InstructionGroupMemberPointerExtension   = uint8(41)
)

const (
	TransferFeeInitializeConfig             = uint8(0)
	TransferFeeWithdrawWithheldFromMint     = uint8(2)
	TransferFeeWithdrawWithheldFromAccounts = uint8(3)
	TransferFeeHarvestWithheldToMint        = uint8(4)
)

const extensionInitialize = uint8(0)

// MaxWithheldSources is the most source accounts a single withheld-amount
// instruction can reference; the count is encoded in one byte.
const MaxWithheldSources = 255

var (
	ErrTooManySources   = errors.New("token2022: too many source accounts for one instruction")
	ErrNoSources        = errors.New("token2022: no source accounts")
	ErrNotMint          = errors.New("token2022: account is not a token-2022 mint")
	ErrNotTokenAccount  = errors.New("token2022: account is not a token-2022 token account")
	ErrExtensionMissing = errors.New("token2022: extension not present")
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{
		id: program.Token2022,
	}
}

func (p *Program) Name() string {
	return "token 2022"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func putOptionalKey(data []byte, key *solana.PublicKey) {
	if key == nil {
		return
	}
	data[0] = 1
	copy(data[1:], key.Bytes())
}

// appendOptionalKey packs a COption key as the token program reads it in the
// middle of instruction data: one zero byte for none.
func appendOptionalKey(data []byte, key *solana.PublicKey) []byte {
	if key == nil {
		return append(data, 0)
	}
	return append(append(data, 1), key.Bytes()...)
}

// putNonZeroKey writes an optional key the way extensions store it: the zero
// key means none.
func putNonZeroKey(data []byte, key *solana.PublicKey) {
	if key == nil {
		return
	}
	copy(data, key.Bytes())
}

func (p *Program) InstructionInitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	data := make([]byte, 67)
	data[0] = InstructionInitializeMint
	data[1] = decimals
	copy(data[2:], mintAuthority.Bytes())
	putOptionalKey(data[34:], freezeAuthority)
	return program.NewInstruction(p.id, data,
		program.Writable(mint),
		program.ReadOnly(program.SysRent),
	)
}

func (p *Program) InstructionInitializeTransferFeeConfig(mint solana.PublicKey, configAuthority *solana.PublicKey, withdrawAuthority *solana.PublicKey, feeBasisPoints uint16, maximumFee uint64) solana.Instruction {
	data := make([]byte, 0, 78)
	data = append(data, InstructionTransferFeeExtension, TransferFeeInitializeConfig)
	data = appendOptionalKey(data, configAuthority)
	data = appendOptionalKey(data, withdrawAuthority)
	data = binary.LittleEndian.AppendUint16(data, feeBasisPoints)
	data = binary.LittleEndian.AppendUint64(data, maximumFee)
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializeInterestBearingMint(mint solana.PublicKey, rateAuthority solana.PublicKey, rate int16) solana.Instruction {
	data := make([]byte, 36)
	data[0] = InstructionInterestBearingMintExtension
	data[1] = extensionInitialize
	copy(data[2:], rateAuthority.Bytes())
	binary.LittleEndian.PutUint16(data[34:], uint16(rate))
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializeDefaultAccountState(mint solana.PublicKey, state AccountState) solana.Instruction {
	data := []byte{InstructionDefaultAccountStateExtension, extensionInitialize, uint8(state)}
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializePermanentDelegate(mint solana.PublicKey, delegate solana.PublicKey) solana.Instruction {
	data := make([]byte, 33)
	data[0] = InstructionInitializePermanentDelegate
	copy(data[1:], delegate.Bytes())
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializeMintCloseAuthority(mint solana.PublicKey, closeAuthority *solana.PublicKey) solana.Instruction {
	data := make([]byte, 34)
	data[0] = InstructionInitializeMintCloseAuthority
	putOptionalKey(data[1:], closeAuthority)
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializeNonTransferableMint(mint solana.PublicKey) solana.Instruction {
	return program.NewInstruction(p.id, []byte{InstructionInitializeNonTransferableMint}, program.Writable(mint))
}

func (p *Program) instructionInitializePointer(ix uint8, mint solana.PublicKey, authority *solana.PublicKey, address *solana.PublicKey) solana.Instruction {
	data := make([]byte, 66)
	data[0] = ix
	data[1] = extensionInitialize
	putNonZeroKey(data[2:], authority)
	putNonZeroKey(data[34:], address)
	return program.NewInstruction(p.id, data, program.Writable(mint))
}

func (p *Program) InstructionInitializeMetadataPointer(mint solana.PublicKey, authority *solana.PublicKey, metadataAddress *solana.PublicKey) solana.Instruction {
	return p.instructionInitializePointer(InstructionMetadataPointerExtension, mint, authority, metadataAddress)
}

func (p *Program) InstructionInitializeGroupPointer(mint solana.PublicKey, authority *solana.PublicKey, groupAddress *solana.PublicKey) solana.Instruction {
	return p.instructionInitializePointer(InstructionGroupPointerExtension, mint, authority, groupAddress)
}

func (p *Program) InstructionInitializeGroupMemberPointer(mint solana.PublicKey, authority *solana.PublicKey, memberAddress *solana.PublicKey) solana.Instruction {
	return p.instructionInitializePointer(InstructionGroupMemberPointerExtension, mint, authority, memberAddress)
}

func (p *Program) InstructionInitializeTransferHook(mint solana.PublicKey, authority *solana.PublicKey, hookProgram solana.PublicKey) solana.Instruction {
	return p.instructionInitializePointer(InstructionTransferHookExtension, mint, authority, &hookProgram)
}

func (p *Program) InstructionThawAccount(account solana.PublicKey, mint solana.PublicKey, authority solana.PublicKey) solana.Instruction {
	return program.NewInstruction(p.id, []byte{InstructionThawAccount},
		program.Writable(account),
		program.ReadOnly(mint),
		program.Signer(authority, false),
	)
}

func (p *Program) InstructionMintTo(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionMintTo
	binary.LittleEndian.PutUint64(data[1:], amount)
	return program.NewInstruction(p.id, data,
		program.Writable(mint),
		program.Writable(destination),
		program.Signer(authority, false),
	)
}

func (p *Program) InstructionWithdrawWithheldTokensFromMint(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey) solana.Instruction {
	data := []byte{InstructionTransferFeeExtension, TransferFeeWithdrawWithheldFromMint}
	return program.NewInstruction(p.id, data,
		program.Writable(mint),
		program.Writable(destination),
		program.Signer(authority, false),
	)
}

func (p *Program) InstructionWithdrawWithheldTokensFromAccounts(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, sources []solana.PublicKey) (solana.Instruction, error) {
	if err := checkSources(sources); err != nil {
		return nil, err
	}
	data := []byte{InstructionTransferFeeExtension, TransferFeeWithdrawWithheldFromAccounts, uint8(len(sources))}
	accounts := make([]*solana.AccountMeta, 0, 3+len(sources))
	accounts = append(accounts,
		program.ReadOnly(mint),
		program.Writable(destination),
		program.Signer(authority, false),
	)
	for _, source := range sources {
		accounts = append(accounts, program.Writable(source))
	}
	return program.NewInstruction(p.id, data, accounts...), nil
}

func (p *Program) InstructionHarvestWithheldTokensToMint(mint solana.PublicKey, sources []solana.PublicKey) (solana.Instruction, error) {
	if err := checkSources(sources); err != nil {
		return nil, err
	}
	data := []byte{InstructionTransferFeeExtension, TransferFeeHarvestWithheldToMint}
	accounts := make([]*solana.AccountMeta, 0, 1+len(sources))
	accounts = append(accounts, program.Writable(mint))
	for _, source := range sources {
		accounts = append(accounts, program.Writable(source))
	}
	return program.NewInstruction(p.id, data, accounts...), nil
}

func checkSources(sources []solana.PublicKey) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	if len(sources) > MaxWithheldSources {
		return fmt.Errorf("%w: %d > %d", ErrTooManySources, len(sources), MaxWithheldSources)
	}
	return nil
}

func borsh(prefix []byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(prefix)
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InstructionInitializeTokenMetadata writes name, symbol and uri into the
// metadata account, which for self-referential metadata is the mint itself.
func (p *Program) InstructionInitializeTokenMetadata(metadata solana.PublicKey, updateAuthority solana.PublicKey, mint solana.PublicKey, mintAuthority solana.PublicKey, name string, symbol string, uri string) (solana.Instruction, error) {
	data, err := borsh(metadataInitialize, &initializeMetadataArgs{Name: name, Symbol: symbol, Uri: uri})
	if err != nil {
		return nil, fmt.Errorf("encode initialize metadata: %w", err)
	}
	return program.NewInstruction(p.id, data,
		program.Writable(metadata),
		program.ReadOnly(updateAuthority),
		program.ReadOnly(mint),
		program.Signer(mintAuthority, false),
	), nil
}

func (p *Program) InstructionUpdateTokenMetadataField(metadata solana.PublicKey, updateAuthority solana.PublicKey, field MetadataField, key string, value string) (solana.Instruction, error) {
	var args interface{}
	if field == MetadataFieldKey {
		args = &updateKeyFieldArgs{Field: field, Key: key, Value: value}
	} else {
		args = &updateValueArgs{Field: field, Value: value}
	}
	data, err := borsh(metadataUpdateField, args)
	if err != nil {
		return nil, fmt.Errorf("encode update metadata field: %w", err)
	}
	return program.NewInstruction(p.id, data,
		program.Writable(metadata),
		program.Signer(updateAuthority, false),
	), nil
}

func (p *Program) ParseMint(account *backend.Account) (*KeyedMint, error) {
	if account.Account == nil {
		return nil, fmt.Errorf("account(%s) is missing", account.PubKey)
	}
	if account.Account.Owner != p.id {
		return nil, fmt.Errorf("%w: account(%s) owner %s", ErrNotMint, account.PubKey, account.Account.Owner)
	}
	return DecodeMint(account.PubKey, account.Height, account.Account.Data.GetBinary())
}

// DecodeMint decodes the base mint layout and, for extended mints, indexes
// every TLV entry by type.
func DecodeMint(key solana.PublicKey, height uint64, data []byte) (*KeyedMint, error) {
	if len(data) < MintLayoutSize {
		return nil, fmt.Errorf("%w: mint(%s) data size %d", ErrInvalidAccountData, key, len(data))
	}
	mint := &KeyedMint{
		Key:        key,
		Height:     height,
		Extensions: make(map[ExtensionType][]byte),
	}
	if err := binary.Read(bytes.NewReader(data[:MintLayoutSize]), binary.LittleEndian, &mint.MintLayout); err != nil {
		return nil, fmt.Errorf("%w: mint(%s): %s", ErrInvalidAccountData, key, err)
	}
	if len(data) == MintLayoutSize {
		return mint, nil
	}
	extensions, err := decodeExtensions(key, data, AccountTypeMint)
	if err != nil {
		return nil, err
	}
	mint.Extensions = extensions
	return mint, nil
}

// ParseAccount decodes a token account owned by the token-2022 program.
func (p *Program) ParseAccount(account *backend.Account) (*KeyedAccount, error) {
	if account.Account == nil {
		return nil, fmt.Errorf("account(%s) is missing", account.PubKey)
	}
	if account.Account.Owner != p.id {
		return nil, fmt.Errorf("%w: account(%s) owner %s", ErrNotTokenAccount, account.PubKey, account.Account.Owner)
	}
	return DecodeAccount(account.PubKey, account.Height, account.Account.Data.GetBinary())
}

func DecodeAccount(key solana.PublicKey, height uint64, data []byte) (*KeyedAccount, error) {
	if len(data) < AccountLayoutSize {
		return nil, fmt.Errorf("%w: account(%s) data size %d", ErrInvalidAccountData, key, len(data))
	}
	account := &KeyedAccount{
		Key:        key,
		Height:     height,
		Extensions: make(map[ExtensionType][]byte),
	}
	if err := binary.Read(bytes.NewReader(data[:AccountLayoutSize]), binary.LittleEndian, &account.AccountLayout); err != nil {
		return nil, fmt.Errorf("%w: account(%s): %s", ErrInvalidAccountData, key, err)
	}
	if len(data) == AccountLayoutSize {
		return account, nil
	}
	extensions, err := decodeExtensions(key, data, AccountTypeAccount)
	if err != nil {
		return nil, err
	}
	account.Extensions = extensions
	return account, nil
}

// decodeExtensions indexes the TLV entries that follow the account type byte.
func decodeExtensions(key solana.PublicKey, data []byte, accountType AccountType) (map[ExtensionType][]byte, error) {
	offset := AccountLayoutSize
	if len(data) <= offset || AccountType(data[offset]) != accountType {
		if accountType == AccountTypeMint {
			return nil, fmt.Errorf("%w: account(%s) is not a mint", ErrNotMint, key)
		}
		return nil, fmt.Errorf("%w: account(%s) is not a token account", ErrNotTokenAccount, key)
	}
	offset += AccountTypeSize
	extensions := make(map[ExtensionType][]byte)
	for offset+TLVTypeSize+TLVLengthSize <= len(data) {
		t := ExtensionType(binary.LittleEndian.Uint16(data[offset:]))
		length := int(binary.LittleEndian.Uint16(data[offset+TLVTypeSize:]))
		offset += TLVTypeSize + TLVLengthSize
		if t == ExtensionUninitialized {
			break
		}
		if offset+length > len(data) {
			return nil, fmt.Errorf("%w: account(%s) extension %s overruns data", ErrInvalidAccountData, key, t)
		}
		extensions[t] = data[offset : offset+length]
		offset += length
	}
	return extensions, nil
}

// WithheldAmount is the transfer fee withheld in the account, zero when the
// account carries no TransferFeeAmount entry.
func (a *KeyedAccount) WithheldAmount() (uint64, error) {
	value, ok := a.Extensions[ExtensionTransferFeeAmount]
	if !ok {
		return 0, nil
	}
	amount := &TransferFeeAmountLayout{}
	if err := binary.Read(bytes.NewReader(value), binary.LittleEndian, amount); err != nil {
		return 0, fmt.Errorf("%w: account(%s) %s: %s", ErrInvalidAccountData, a.Key, ExtensionTransferFeeAmount, err)
	}
	return amount.WithheldAmount, nil
}

func (m *KeyedMint) TokenMetadata() (*TokenMetadata, error) {
	value, ok := m.Extensions[ExtensionTokenMetadata]
	if !ok {
		return nil, fmt.Errorf("%w: mint(%s) token metadata", ErrExtensionMissing, m.Key)
	}
	return DecodeTokenMetadata(value)
}

func (m *KeyedMint) TransferFeeConfig() (*TransferFeeConfigLayout, error) {
	value, ok := m.Extensions[ExtensionTransferFeeConfig]
	if !ok {
		return nil, fmt.Errorf("%w: mint(%s) %s", ErrExtensionMissing, m.Key, ExtensionTransferFeeConfig)
	}
	config := &TransferFeeConfigLayout{}
	if err := binary.Read(bytes.NewReader(value), binary.LittleEndian, config); err != nil {
		return nil, fmt.Errorf("%w: mint(%s) %s: %s", ErrInvalidAccountData, m.Key, ExtensionTransferFeeConfig, err)
	}
	return config, nil
}

// InstructionUpdateTokenMetadataAuthority hands the metadata to newAuthority.
// A nil newAuthority makes the metadata immutable.
func (p *Program) InstructionUpdateTokenMetadataAuthority(metadata solana.PublicKey, current solana.PublicKey, newAuthority *solana.PublicKey) solana.Instruction {
	data := make([]byte, 0, len(metadataUpdateAuthority)+32)
	data = append(data, metadataUpdateAuthority...)
	var key solana.PublicKey
	if newAuthority != nil {
		key = *newAuthority
	}
	data = append(data, key.Bytes()...)
	return program.NewInstruction(p.id, data,
		program.Writable(metadata),
		program.Signer(current, false),
	)
}
