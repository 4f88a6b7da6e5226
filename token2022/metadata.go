package token2022

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type Field struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// TokenMetadata is the metadata written into the mint account itself. Mint
// may be the zero key while the overlay is only being sized.
type TokenMetadata struct {
	UpdateAuthority    solana.PublicKey
	Mint               solana.PublicKey
	Name               string
	Symbol             string
	Uri                string
	AdditionalMetadata []Field
}

// Pack borsh-encodes the metadata the way the token program stores it.
func (m *TokenMetadata) Pack() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(m); err != nil {
		return nil, fmt.Errorf("pack token metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTokenMetadata reads a borsh-packed TokenMetadata TLV value.
func DecodeTokenMetadata(value []byte) (*TokenMetadata, error) {
	m := &TokenMetadata{}
	if err := bin.NewBorshDecoder(value).Decode(m); err != nil {
		return nil, fmt.Errorf("%w: token metadata: %s", ErrInvalidAccountData, err)
	}
	return m, nil
}

// Field returns the current value of a base field or additional key.
func (m *TokenMetadata) Field(field MetadataField, key string) string {
	switch field {
	case MetadataFieldName:
		return m.Name
	case MetadataFieldSymbol:
		return m.Symbol
	case MetadataFieldUri:
		return m.Uri
	}
	for _, f := range m.AdditionalMetadata {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// Set applies an UpdateField to the in-memory copy the way the program does:
// unknown additional keys are appended.
func (m *TokenMetadata) Set(field MetadataField, key string, value string) {
	switch field {
	case MetadataFieldName:
		m.Name = value
	case MetadataFieldSymbol:
		m.Symbol = value
	case MetadataFieldUri:
		m.Uri = value
	default:
		for i := range m.AdditionalMetadata {
			if m.AdditionalMetadata[i].Key == key {
				m.AdditionalMetadata[i].Value = value
				return
			}
		}
		m.AdditionalMetadata = append(m.AdditionalMetadata, Field{Key: key, Value: value})
	}
}

// Space is the number of bytes the metadata occupies in the mint account,
// including its TLV header.
func (m *TokenMetadata) Space() (int, error) {
	packed, err := m.Pack()
	if err != nil {
		return 0, err
	}
	return len(packed) + TLVTypeSize + TLVLengthSize, nil
}

type MetadataField uint8

const (
	MetadataFieldName MetadataField = iota
	MetadataFieldSymbol
	MetadataFieldUri
	MetadataFieldKey
)

func metadataDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("spl_token_metadata_interface:" + name))
	return sum[:8]
}

var (
	metadataInitialize      = metadataDiscriminator("initialize_account")
	metadataUpdateField     = metadataDiscriminator("updating_field")
	metadataUpdateAuthority = metadataDiscriminator("update_the_authority")
)

type initializeMetadataArgs struct {
	Name   string
	Symbol string
	Uri    string
}

type updateKeyFieldArgs struct {
	Field MetadataField
	Key   string
	Value string
}

type updateValueArgs struct {
	Field MetadataField
	Value string
}
