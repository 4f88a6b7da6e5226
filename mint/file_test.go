package mint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBlueprintFile_Yaml(t *testing.T) {
	withdraw := solana.NewWallet().PublicKey()
	freeze := solana.NewWallet().PublicKey()
	content := `
name: Fee Token
symbol: FEE
decimals: 6
total_supply: 1000000
freeze_authority: ` + freeze.String() + `
mint_total_supply: true
extensions:
  - type: transfer_fee_config
    fee_basis_points: 250
    maximum_fee: 9000
    withdraw_authority: ` + withdraw.String() + `
  - type: default_account_state
    state: frozen
  - type: metadata_pointer
  - type: cpi_guard
reserve_uninitialized: true
metadata:
  uri: https://example.com/fee.json
  additional:
    - key: site
      value: example.com
`
	path := filepath.Join(t.TempDir(), "fee.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	file, err := LoadBlueprintFile(path)
	require.NoError(t, err)
	caller := solana.NewWallet().PublicKey()
	bp, err := file.Blueprint(caller)
	require.NoError(t, err)

	assert.Equal(t, caller, bp.Owner)
	assert.Equal(t, caller, bp.MintAuthority)
	require.NotNil(t, bp.FreezeAuthority)
	assert.Equal(t, freeze, *bp.FreezeAuthority)
	assert.Equal(t, []token2022.ExtensionType{
		token2022.ExtensionTransferFeeConfig,
		token2022.ExtensionDefaultAccountState,
		token2022.ExtensionMetadataPointer,
		token2022.ExtensionCpiGuard,
	}, bp.ExtensionTypes())
	fee := bp.Extensions[0].(token2022.TransferFeeConfig)
	assert.Equal(t, uint16(250), fee.FeeBasisPoints)
	assert.Nil(t, fee.ConfigAuthority)
	assert.Equal(t, withdraw, *fee.WithdrawAuthority)
	assert.True(t, bp.DefaultFrozen())
	assert.Equal(t, "Fee Token", bp.Metadata.Name)
	assert.Equal(t, "FEE", bp.Metadata.Symbol)
	assert.Equal(t, []token2022.Field{{Key: "site", Value: "example.com"}}, bp.Metadata.AdditionalMetadata)
	require.NoError(t, bp.Validate())
}

func TestBlueprintFile_Invalid(t *testing.T) {
	caller := solana.NewWallet().PublicKey()

	_, err := (&BlueprintFile{Name: "a", Symbol: "A", Owner: "not-a-key"}).Blueprint(caller)
	assert.ErrorIs(t, err, ErrInvalidBlueprint)

	_, err = (&BlueprintFile{Extensions: []ExtensionFile{{Type: "confidential_everything"}}}).Blueprint(caller)
	assert.ErrorIs(t, err, token2022.ErrUnknownExtension)

	_, err = (&BlueprintFile{Extensions: []ExtensionFile{{Type: "default_account_state", State: "open"}}}).Blueprint(caller)
	assert.ErrorIs(t, err, ErrInvalidBlueprint)

	_, err = (&BlueprintFile{Extensions: []ExtensionFile{{Type: "permanent_delegate"}}}).Blueprint(caller)
	assert.ErrorIs(t, err, ErrInvalidBlueprint)

	_, err = (&BlueprintFile{Extensions: []ExtensionFile{{Type: "transfer_hook"}}}).Blueprint(caller)
	assert.ErrorIs(t, err, ErrInvalidBlueprint)
}
