package mint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// ExtensionFile is the flat text form of one extension. Only the fields of
// Type are read.
type ExtensionFile struct {
	Type              string `json:"type" yaml:"type"`
	FeeBasisPoints    uint16 `json:"fee_basis_points,omitempty" yaml:"fee_basis_points"`
	MaximumFee        uint64 `json:"maximum_fee,omitempty" yaml:"maximum_fee"`
	ConfigAuthority   string `json:"config_authority,omitempty" yaml:"config_authority"`
	WithdrawAuthority string `json:"withdraw_authority,omitempty" yaml:"withdraw_authority"`
	Rate              int16  `json:"rate,omitempty" yaml:"rate"`
	State             string `json:"state,omitempty" yaml:"state"`
	Delegate          string `json:"delegate,omitempty" yaml:"delegate"`
	Authority         string `json:"authority,omitempty" yaml:"authority"`
	Address           string `json:"address,omitempty" yaml:"address"`
	ProgramId         string `json:"program_id,omitempty" yaml:"program_id"`
}

type MetadataFile struct {
	Name       string            `json:"name,omitempty" yaml:"name"`
	Symbol     string            `json:"symbol,omitempty" yaml:"symbol"`
	Uri        string            `json:"uri" yaml:"uri"`
	Additional []token2022.Field `json:"additional,omitempty" yaml:"additional"`
}

// BlueprintFile is the text form of a Blueprint used by the http api and the
// command line.
type BlueprintFile struct {
	Name                 string          `json:"name" yaml:"name"`
	Symbol               string          `json:"symbol" yaml:"symbol"`
	Decimals             uint8           `json:"decimals" yaml:"decimals"`
	TotalSupply          uint64          `json:"total_supply" yaml:"total_supply"`
	Owner                string          `json:"owner,omitempty" yaml:"owner"`
	MintAuthority        string          `json:"mint_authority,omitempty" yaml:"mint_authority"`
	FreezeAuthority      string          `json:"freeze_authority,omitempty" yaml:"freeze_authority"`
	Extensions           []ExtensionFile `json:"extensions" yaml:"extensions"`
	Metadata             *MetadataFile   `json:"metadata,omitempty" yaml:"metadata"`
	MintTotalSupply      bool            `json:"mint_total_supply" yaml:"mint_total_supply"`
	SellerFeeBasisPoints uint16          `json:"seller_fee_basis_points,omitempty" yaml:"seller_fee_basis_points"`
	ReserveUninitialized bool            `json:"reserve_uninitialized,omitempty" yaml:"reserve_uninitialized"`
}

// LoadBlueprintFile reads a blueprint from a .json, .yaml or .yml file.
func LoadBlueprintFile(path string) (*BlueprintFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file := &BlueprintFile{}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, file)
	default:
		err = json.Unmarshal(data, file)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func optionalKey(field, value string) (*solana.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return nil, invalid("%s: %s", field, err)
	}
	return &key, nil
}

// Blueprint converts the file. Owner and mint authority fall back to caller
// when empty.
func (f *BlueprintFile) Blueprint(caller solana.PublicKey) (*Blueprint, error) {
	bp := &Blueprint{
		Name:                 f.Name,
		Symbol:               f.Symbol,
		Decimals:             f.Decimals,
		TotalSupply:          f.TotalSupply,
		MintTotalSupply:      f.MintTotalSupply,
		SellerFeeBasisPoints: f.SellerFeeBasisPoints,
		ReserveUninitialized: f.ReserveUninitialized,
		Extensions:           make([]token2022.Extension, 0, len(f.Extensions)),
	}
	owner, err := optionalKey("owner", f.Owner)
	if err != nil {
		return nil, err
	}
	bp.Owner = *orKey(owner, caller)
	mintAuthority, err := optionalKey("mint_authority", f.MintAuthority)
	if err != nil {
		return nil, err
	}
	bp.MintAuthority = *orKey(mintAuthority, caller)
	if bp.FreezeAuthority, err = optionalKey("freeze_authority", f.FreezeAuthority); err != nil {
		return nil, err
	}
	for i := range f.Extensions {
		ext, err := f.Extensions[i].Extension()
		if err != nil {
			return nil, fmt.Errorf("extensions[%d]: %w", i, err)
		}
		bp.Extensions = append(bp.Extensions, ext)
	}
	if f.Metadata != nil {
		bp.Metadata = &token2022.TokenMetadata{
			Name:               f.Metadata.Name,
			Symbol:             f.Metadata.Symbol,
			Uri:                f.Metadata.Uri,
			AdditionalMetadata: f.Metadata.Additional,
		}
		if bp.Metadata.Name == "" {
			bp.Metadata.Name = f.Name
		}
		if bp.Metadata.Symbol == "" {
			bp.Metadata.Symbol = f.Symbol
		}
	}
	return bp, nil
}

func (f *ExtensionFile) Extension() (token2022.Extension, error) {
	kind, err := token2022.ParseExtensionType(f.Type)
	if err != nil {
		return nil, err
	}
	authority, err := optionalKey("authority", f.Authority)
	if err != nil {
		return nil, err
	}
	address, err := optionalKey("address", f.Address)
	if err != nil {
		return nil, err
	}
	switch kind {
	case token2022.ExtensionTransferFeeConfig:
		configAuthority, err := optionalKey("config_authority", f.ConfigAuthority)
		if err != nil {
			return nil, err
		}
		withdraw, err := optionalKey("withdraw_authority", f.WithdrawAuthority)
		if err != nil {
			return nil, err
		}
		return token2022.TransferFeeConfig{
			FeeBasisPoints:    f.FeeBasisPoints,
			MaximumFee:        f.MaximumFee,
			ConfigAuthority:   configAuthority,
			WithdrawAuthority: withdraw,
		}, nil
	case token2022.ExtensionInterestBearingConfig:
		return token2022.InterestBearingConfig{Rate: f.Rate, RateAuthority: authority}, nil
	case token2022.ExtensionDefaultAccountState:
		switch f.State {
		case token2022.AccountStateInitialized.String():
			return token2022.DefaultAccountState{State: token2022.AccountStateInitialized}, nil
		case token2022.AccountStateFrozen.String():
			return token2022.DefaultAccountState{State: token2022.AccountStateFrozen}, nil
		}
		return nil, invalid("default account state %q", f.State)
	case token2022.ExtensionPermanentDelegate:
		delegate, err := optionalKey("delegate", f.Delegate)
		if err != nil {
			return nil, err
		}
		if delegate == nil {
			return nil, invalid("permanent delegate is not set")
		}
		return token2022.PermanentDelegate{Delegate: *delegate}, nil
	case token2022.ExtensionMintCloseAuthority:
		return token2022.MintCloseAuthority{CloseAuthority: authority}, nil
	case token2022.ExtensionNonTransferable:
		return token2022.NonTransferable{}, nil
	case token2022.ExtensionMetadataPointer:
		return token2022.MetadataPointer{Authority: authority, MetadataAddress: address}, nil
	case token2022.ExtensionTransferHook:
		hook, err := optionalKey("program_id", f.ProgramId)
		if err != nil {
			return nil, err
		}
		if hook == nil {
			return nil, invalid("transfer hook program is not set")
		}
		return token2022.TransferHook{Authority: authority, ProgramID: *hook}, nil
	case token2022.ExtensionGroupPointer:
		return token2022.GroupPointer{Authority: authority, GroupAddress: address}, nil
	case token2022.ExtensionGroupMemberPointer:
		return token2022.GroupMemberPointer{Authority: authority, MemberAddress: address}, nil
	}
	return token2022.ReservedExtension{Kind: kind}, nil
}
