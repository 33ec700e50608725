package service

import (
	"context"
	"time"

	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	platformsync "presence/pkg/platform/sync"
)

// defaultLedgerTxTimeout bounds a ledger write when the caller set no deadline.
const defaultLedgerTxTimeout = 5 * time.Second

// subjectTx serializes ledger writes per subject on a sharded mutex. The
// store's put-if-absent still decides races across processes.
type subjectTx struct {
	mu      *platformsync.ShardedMutex
	metrics *metrics.Metrics
	timeout time.Duration
}

func (t *subjectTx) RunInTx(ctx context.Context, subject string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger write aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lockStart := time.Now()
	t.mu.Lock(subject)
	t.metrics.ObserveLedgerLockWait(time.Since(lockStart).Seconds())
	defer t.mu.Unlock(subject)

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger write aborted: context cancelled")
	}
	return fn(ctx)
}
