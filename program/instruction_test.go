package program

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountMetas(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	cases := []struct {
		name     string
		meta     *solana.AccountMeta
		signer   bool
		writable bool
	}{
		{"writable", Writable(key), false, true},
		{"read only", ReadOnly(key), false, false},
		{"signer", Signer(key, false), true, false},
		{"writable signer", Signer(key, true), true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, key, c.meta.PublicKey)
			assert.Equal(t, c.signer, c.meta.IsSigner)
			assert.Equal(t, c.writable, c.meta.IsWritable)
		})
	}
}

func TestNewInstruction(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	in := NewInstruction(Token2022, []byte{7, 1}, Writable(key))
	data, err := in.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 1}, data)
	assert.Equal(t, Token2022, in.ProgramID())
	require.Len(t, in.Accounts(), 1)
	assert.Equal(t, key, in.Accounts()[0].PublicKey)

	var _ solana.Instruction = in
}
