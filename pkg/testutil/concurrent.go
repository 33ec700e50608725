package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines and buckets the results.
// Losing a race (a duplicate day, a second issuance, a concurrent rotation)
// counts as a conflict whether it surfaces as a sentinel or a domain code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds atomic.Int32

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case IsConflict(err):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: notFounds.Load(),
	}
}

// IsConflict reports whether err is the loser's error of a write race.
func IsConflict(err error) bool {
	if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrAlreadyExists) {
		return true
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeConflict, dErrors.CodeDuplicateForDay, dErrors.CodeAlreadyIssued, dErrors.CodeAlreadyRevoked:
		return true
	}
	return false
}
