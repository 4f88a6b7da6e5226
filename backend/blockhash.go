package backend

import (
	"context"
	"sync/atomic"

	"github.com/gagliardetto/solana-go/rpc"
)

// latestBlockhash asks each node in turn, starting from the last one that
// answered, and returns the first result.
func (backend *Backend) latestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error) {
	start := int(atomic.LoadUint32(&backend.index))
	var err error
	for i := 0; i < len(backend.clients); i++ {
		index := (start + i) % len(backend.clients)
		var result *rpc.GetLatestBlockhashResult
		result, err = backend.clients[index].GetLatestBlockhash(ctx, backend.commitment)
		if err != nil {
			backend.logger.Printf("GetLatestBlockhash, %d err: %s", index, err.Error())
			continue
		}
		if result.Value == nil {
			continue
		}
		atomic.StoreUint32(&backend.index, uint32(index))
		return result.Value, nil
	}
	if err == nil {
		err = ErrNoBlockhash
	}
	return nil, err
}
