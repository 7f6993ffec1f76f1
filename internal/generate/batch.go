package generate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region batch-engine

// Generate runs a batch through the worker pool. Scenario i always draws
// from seed+i, so results are independent of worker count and schedule.
// If the batch deadline fires first, the scenarios finished so far come
// back with DeadlineHit set; the diagnostics always state requested
// versus returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Batch, error) {
	if req.Count < 1 {
		return nil, simerr.Newf(simerr.CodeInvariantViolation, "scenario count %d, need at least 1", req.Count)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := g.gridFor(req); err != nil {
		return nil, err
	}

	if g.cfg.BatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.BatchDeadline)
		defer cancel()
	}
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	results := make([]scenario.Components, req.Count)
	done := make([]bool, req.Count)

	var mu sync.Mutex
	var firstErr error

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < g.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				sc, err := g.GenerateOne(req, idx)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
					return
				}
				results[idx] = sc
				done[idx] = true
			}
		}()
	}

feed:
	for i := 0; i < req.Count; i++ {
		select {
		case jobs <- i:
		case <-workerCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	batch := &Batch{}
	diag := Diagnostics{
		Requested:      req.Count,
		RetryHistogram: make(map[int]int),
		Elapsed:        time.Since(start),
		DeadlineHit:    ctx.Err() != nil,
	}
	for i := 0; i < req.Count; i++ {
		if !done[i] {
			continue
		}
		sc := results[i]
		batch.Scenarios = append(batch.Scenarios, sc)
		diag.Returned++
		diag.RetryHistogram[sc.Meta.Attempts]++
		if sc.Meta.Accepted {
			diag.Accepted++
			if sc.Meta.Attempts == 1 {
				diag.FirstAttempt++
			}
		} else {
			diag.Rejected++
		}
	}
	batch.Diagnostics = diag

	log.Printf("[GEN] batch done: requested=%d returned=%d accepted=%d rejected=%d elapsed=%s",
		diag.Requested, diag.Returned, diag.Accepted, diag.Rejected, diag.Elapsed.Round(time.Millisecond))
	return batch, nil
}

// #endregion batch-engine
