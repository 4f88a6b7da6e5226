package system

import (
	"encoding/binary"
	"testing"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestProgram_InstructionCreateAccount(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	in := NewProgram().InstructionCreateAccount(from, mint, 2_000_000, 234, program.Token2022)

	data, err := in.Data()
	require.NoError(t, err)
	require.Len(t, data, 52)
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[0:]))
	require.Equal(t, uint64(2_000_000), binary.LittleEndian.Uint64(data[4:]))
	require.Equal(t, uint64(234), binary.LittleEndian.Uint64(data[12:]))
	require.Equal(t, program.Token2022.Bytes(), data[20:52])

	accounts := in.Accounts()
	require.Len(t, accounts, 2)
	require.True(t, accounts[0].IsSigner && accounts[0].IsWritable)
	require.True(t, accounts[1].IsSigner && accounts[1].IsWritable)
	require.Equal(t, program.System, in.ProgramID())
}
