// Package services provides core business logic services.
package services

import (
	"context"
	"sync/atomic"

	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/types"

	"golang.org/x/sync/semaphore"
)

// PoolStats is a point-in-time view of the worker pool.
type PoolStats struct {
	Size        int   `json:"size"`
	InFlight    int64 `json:"in_flight"`
	Completed   int64 `json:"completed"`
	Recycles    int64 `json:"recycles"`
	MaxRequests int   `json:"max_requests"`
}

// Pool bounds concurrent extractions to a fixed number of worker slots.
// After every maxRequests completed extractions it calls recycle.
type Pool struct {
	sem         *semaphore.Weighted
	size        int
	maxRequests int
	recycle     func() error
	log         *logging.Logger

	inFlight  atomic.Int64
	completed atomic.Int64
	recycles  atomic.Int64
}

// NewPool creates a pool with size slots. maxRequests <= 0 disables recycling.
func NewPool(size, maxRequests int, recycle func() error, log *logging.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:         semaphore.NewWeighted(int64(size)),
		size:        size,
		maxRequests: maxRequests,
		recycle:     recycle,
		log:         log.WithComponent("pool"),
	}
}

// Acquire waits for a free slot until ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return &types.ExtractionError{
			Kind:    types.ErrorKindUnavailable,
			Message: "no extraction worker available",
			Err:     err,
		}
	}
	p.inFlight.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	p.inFlight.Add(-1)
	p.sem.Release(1)

	n := p.completed.Add(1)
	if p.maxRequests > 0 && n%int64(p.maxRequests) == 0 {
		p.doRecycle(n)
	}
}

func (p *Pool) doRecycle(completed int64) {
	if p.recycle == nil {
		return
	}
	p.recycles.Add(1)
	if err := p.recycle(); err != nil {
		p.log.Warn("recycle failed", "completed", completed, "error", err)
		return
	}
	p.log.Info("recycled extractors", "completed", completed)
}

// Stats returns the current pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Size:        p.size,
		InFlight:    p.inFlight.Load(),
		Completed:   p.completed.Load(),
		Recycles:    p.recycles.Load(),
		MaxRequests: p.maxRequests,
	}
}
