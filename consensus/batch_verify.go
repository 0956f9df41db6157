package consensus

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/undchain/modulr/chain"
)

// DefaultVerificationWorkers bounds the concurrency of VerifyBatch when
// the caller passes maxWorkers <= 0. rules.toml's verification_workers
// is not read.
const DefaultVerificationWorkers = 8

// VerifyBatch validates every block in blocks concurrently, bounded to
// maxWorkers in flight at once (0 selects DefaultVerificationWorkers).
// Signature/leader checks are independent per block so they parallelize
// safely; callers still apply accepted blocks to the chain sequentially
// to preserve prev_hash linkage.
func (e *Engine) VerifyBatch(ctx context.Context, blocks []*chain.Block, maxWorkers int64) []error {
	if maxWorkers <= 0 {
		maxWorkers = DefaultVerificationWorkers
	}
	sem := semaphore.NewWeighted(maxWorkers)
	errs := make([]error, len(blocks))

	done := make(chan struct{}, len(blocks))
	for i, b := range blocks {
		i, b := i, b
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			errs[i] = e.ValidateBlock(b)
			done <- struct{}{}
		}()
	}
	for range blocks {
		<-done
	}
	return errs
}
