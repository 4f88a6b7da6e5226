package ata

import (
	"testing"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_Address(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	p := NewProgram(program.Token)
	address, err := p.Address(owner, mint)
	require.NoError(t, err)

	// the legacy token program derivation must agree with the sdk helper
	expected, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, address)

	address2022, err := NewProgram(program.Token2022).Address(owner, mint)
	require.NoError(t, err)
	assert.NotEqual(t, address, address2022)
}

func TestProgram_InstructionCreate(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	p := NewProgram(program.Token2022)
	account, err := p.Address(owner, mint)
	require.NoError(t, err)

	in := p.InstructionCreate(payer, account, owner, mint, false)
	data, _ := in.Data()
	assert.Equal(t, []byte{0}, data)
	in = p.InstructionCreate(payer, account, owner, mint, true)
	data, _ = in.Data()
	assert.Equal(t, []byte{1}, data)

	accounts := in.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, account, accounts[1].PublicKey)
	assert.Equal(t, program.Token2022, accounts[5].PublicKey)
	assert.Equal(t, program.AssociatedToken, in.ProgramID())
}
