package harvest

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type Holding struct {
	Account  solana.PublicKey `json:"account"`
	Owner    solana.PublicKey `json:"owner"`
	Withheld uint64           `json:"withheld"`
}

// Withheld reads the sources in bulk and reports the fee withheld in each
// token account of mint. Closed accounts and accounts of other mints are
// left out.
func (h *Harvester) Withheld(ctx context.Context, mint solana.PublicKey, sources []solana.PublicKey) ([]*Holding, error) {
	if mint.IsZero() {
		return nil, fmt.Errorf("%w: mint is not set", ErrInvalidRequest)
	}
	keys := unique(sources)
	accounts, err := h.chain.Accounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	holdings := make([]*Holding, 0, len(accounts))
	for _, account := range accounts {
		if account.Account == nil {
			h.logger.Printf("source %s is closed, skip", account.PubKey)
			continue
		}
		keyed, err := h.token.ParseAccount(account)
		if err != nil {
			h.logger.Printf("source %s: %s, skip", account.PubKey, err.Error())
			continue
		}
		if keyed.Mint != mint {
			h.logger.Printf("source %s belongs to mint %s, skip", account.PubKey, keyed.Mint)
			continue
		}
		withheld, err := keyed.WithheldAmount()
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, &Holding{Account: account.PubKey, Owner: keyed.Owner, Withheld: withheld})
	}
	return holdings, nil
}

// withholding narrows the request sources to the accounts with a non-zero
// withheld amount.
func (h *Harvester) withholding(ctx context.Context, req *Request) error {
	holdings, err := h.Withheld(ctx, req.Mint, req.Sources)
	if err != nil {
		return err
	}
	sources := make([]solana.PublicKey, 0, len(holdings))
	for _, holding := range holdings {
		if holding.Withheld > 0 {
			sources = append(sources, holding.Account)
		}
	}
	skippedTotal.Add(float64(len(unique(req.Sources)) - len(sources)))
	if len(sources) == 0 {
		return fmt.Errorf("%w: %d sources scanned", ErrNothingWithheld, len(req.Sources))
	}
	h.logger.Printf("mint %s: %d of %d sources withhold fees", req.Mint, len(sources), len(req.Sources))
	req.Sources = sources
	return nil
}
