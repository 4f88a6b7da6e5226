package harvest

import (
	"github.com/gagliardetto/solana-go"
)

// Partition splits sources into ceil(n/size) batches of at most size keys,
// keeping first-seen order and dropping duplicates.
func Partition(sources []solana.PublicKey, size int) [][]solana.PublicKey {
	if size <= 0 {
		size = DefaultBatchSize
	}
	keys := unique(sources)
	batches := make([][]solana.PublicKey, 0, (len(keys)+size-1)/size)
	for index := 0; index < len(keys); index += size {
		end := index + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[index:end])
	}
	return batches
}

func unique(sources []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]bool, len(sources))
	out := make([]solana.PublicKey, 0, len(sources))
	for _, source := range sources {
		if seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, source)
	}
	return out
}
