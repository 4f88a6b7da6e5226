package program

import "github.com/gagliardetto/solana-go"

// Instruction is a pre-encoded instruction. Builders in the program packages
// fill it directly instead of going through per-program encoders.
type Instruction struct {
	IsAccounts  []*solana.AccountMeta
	IsData      []byte
	IsProgramID solana.PublicKey
}

func NewInstruction(programID solana.PublicKey, data []byte, accounts ...*solana.AccountMeta) *Instruction {
	return &Instruction{
		IsAccounts:  accounts,
		IsData:      data,
		IsProgramID: programID,
	}
}

func (i *Instruction) Accounts() []*solana.AccountMeta {
	return i.IsAccounts
}

func (i *Instruction) ProgramID() solana.PublicKey {
	return i.IsProgramID
}

func (i *Instruction) Data() ([]byte, error) {
	return i.IsData, nil
}

func Writable(key solana.PublicKey) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsWritable: true}
}

func ReadOnly(key solana.PublicKey) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key}
}

func Signer(key solana.PublicKey, writable bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsSigner: true, IsWritable: writable}
}
