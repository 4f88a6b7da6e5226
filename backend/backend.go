package backend

import (
	"log"
	"time"

	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type Backend struct {
	logger         *log.Logger
	rpcClient      *rpc.Client
	clients        []*rpc.Client
	index          uint32
	wallets        []*Wallet
	player         solana.PublicKey
	commitment     rpc.CommitmentType
	pollInterval   time.Duration
	confirmTimeout time.Duration
	priorityFee    uint64
}

// NewBackend talks to the first node for reads and submission and falls back
// through the remaining nodes when fetching blockhashes.
func NewBackend(nodes []*config.Node, commitment string, confirmTimeout time.Duration, pollInterval time.Duration) *Backend {
	clients := make([]*rpc.Client, 0, len(nodes))
	for _, node := range nodes {
		clients = append(clients, rpc.New(node.Rpc))
	}
	backend := &Backend{
		logger:         utils.NewLog(config.LogPath, config.BackendLog),
		rpcClient:      clients[0],
		clients:        clients,
		commitment:     parseCommitment(commitment),
		pollInterval:   pollInterval,
		confirmTimeout: confirmTimeout,
	}
	if backend.pollInterval <= 0 {
		backend.pollInterval = 500 * time.Millisecond
	}
	return backend
}

func parseCommitment(commitment string) rpc.CommitmentType {
	switch commitment {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	}
	return rpc.CommitmentConfirmed
}

// SetPriorityFee prefixes every transaction with a compute unit price in
// micro-lamports. Zero leaves transactions unchanged.
func (backend *Backend) SetPriorityFee(microLamports uint64) {
	backend.priorityFee = microLamports
}
