package program

import "github.com/gagliardetto/solana-go"

var (
	Token2022       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	Token           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedToken = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	Memo            = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	ComputeBudget   = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	System          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	SysRent         = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)
