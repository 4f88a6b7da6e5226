package ata

import (
	"fmt"

	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
)

const (
	InstructionCreate           = uint8(0)
	InstructionCreateIdempotent = uint8(1)
)

type Program struct {
	id           solana.PublicKey
	tokenProgram solana.PublicKey
}

// NewProgram returns the associated token account program bound to the token
// program that owns the derived accounts.
func NewProgram(tokenProgram solana.PublicKey) *Program {
	return &Program{
		id:           program.AssociatedToken,
		tokenProgram: tokenProgram,
	}
}

func (p *Program) Name() string {
	return "associated token account"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Address(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress([][]byte{
		owner.Bytes(),
		p.tokenProgram.Bytes(),
		mint.Bytes(),
	}, p.id)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token account(%s, %s): %w", owner, mint, err)
	}
	return address, nil
}

// InstructionCreate creates account as the associated token account of owner
// for mint. With idempotent set, an existing account is not an error.
func (p *Program) InstructionCreate(payer solana.PublicKey, account solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey, idempotent bool) solana.Instruction {
	data := []byte{InstructionCreate}
	if idempotent {
		data[0] = InstructionCreateIdempotent
	}
	return program.NewInstruction(p.id, data,
		program.Signer(payer, true),
		program.Writable(account),
		program.ReadOnly(owner),
		program.ReadOnly(mint),
		program.ReadOnly(program.System),
		program.ReadOnly(p.tokenProgram),
	)
}
