package computebudget

import (
	"testing"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_Instructions(t *testing.T) {
	p := NewProgram()
	cases := []struct {
		name string
		in   solana.Instruction
		data []byte
	}{
		{"limit create destination", p.InstructionSetComputeUnitLimit(42_000), []byte{2, 0x10, 0xa4, 0, 0}},
		{"limit withdraw", p.InstructionSetComputeUnitLimit(10_000), []byte{2, 0x10, 0x27, 0, 0}},
		{"price", p.InstructionSetComputeUnitPrice(1_000_000), []byte{3, 0x40, 0x42, 0x0f, 0, 0, 0, 0, 0}},
		{"zero price", p.InstructionSetComputeUnitPrice(0), []byte{3, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := c.in.Data()
			require.NoError(t, err)
			assert.Equal(t, c.data, data)
			assert.Empty(t, c.in.Accounts())
			assert.Equal(t, program.ComputeBudget, c.in.ProgramID())
		})
	}
}
