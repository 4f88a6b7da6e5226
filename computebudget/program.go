package computebudget

import (
	"encoding/binary"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
)

const (
	InstructionSetComputeUnitLimit = uint8(2)
	InstructionSetComputeUnitPrice = uint8(3)
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{
		id: program.ComputeBudget,
	}
}

func (p *Program) Name() string {
	return "compute budget"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) InstructionSetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = InstructionSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return program.NewInstruction(p.id, data)
}

// InstructionSetComputeUnitPrice sets the priority fee in micro-lamports per unit.
func (p *Program) InstructionSetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return program.NewInstruction(p.id, data)
}
