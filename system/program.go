package system

import (
	"encoding/binary"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
)

const (
	InstructionCreateAccount = uint32(0)
	InstructionTransfer      = uint32(2)
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{
		id: program.System,
	}
}

func (p *Program) Name() string {
	return "system"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

// InstructionCreateAccount allocates space bytes at newKey, funded with lamports
// and assigned to ownerId. Both fromKey and newKey must sign.
func (p *Program) InstructionCreateAccount(fromKey solana.PublicKey, newKey solana.PublicKey, lamports uint64, space uint64, ownerId solana.PublicKey) solana.Instruction {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], ownerId.Bytes())
	return program.NewInstruction(p.id, data,
		program.Signer(fromKey, true),
		program.Signer(newKey, true),
	)
}

func (p *Program) InstructionTransfer(fromKey solana.PublicKey, toKey solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return program.NewInstruction(p.id, data,
		program.Signer(fromKey, true),
		program.Writable(toKey),
	)
}
