package memo

import (
	"github.com/egaotan/solana-token2022/program"
	"github.com/gagliardetto/solana-go"
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{
		id: program.Memo,
	}
}

func (p *Program) Name() string {
	return "memo"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

// InstructionMemo records text in the transaction log. Signers, if any, are
// attached as signing accounts and verified by the memo program.
func (p *Program) InstructionMemo(text string, signers ...solana.PublicKey) solana.Instruction {
	accounts := make([]*solana.AccountMeta, 0, len(signers))
	for _, signer := range signers {
		accounts = append(accounts, program.Signer(signer, false))
	}
	return program.NewInstruction(p.id, []byte(text), accounts...)
}
