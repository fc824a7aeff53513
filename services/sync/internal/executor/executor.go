// Package executor runs batch computations against the provider under a
// bounded retry policy: whole-batch retries for timeouts with a per-date
// fallback, tile-scale escalation for oversized outputs, and fixed-delay
// backoff for transient failures.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/provider"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
)

const (
	maxAttempts        = 3
	maxScaleEscalation = 2
)

// Executor issues batch requests with escalating retry strategies.
type Executor struct {
	provider   provider.Provider
	rep        *report.Reporter
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// New builds an Executor. retryDelay is the transient-failure backoff.
func New(p provider.Provider, rep *report.Reporter, retryDelay time.Duration) *Executor {
	return &Executor{provider: p, rep: rep, retryDelay: retryDelay, sleep: time.Sleep}
}

// policy tracks the three independent escalation counters for one batch.
type policy struct {
	attempt   int
	timeouts  int
	scaleUps  int
	tileScale int
}

// Run retrieves one batch for a demand group. A nil result with a nil
// error never occurs: either the result map (possibly empty) is returned,
// or the batch failed hard and the error describes the last failure.
func (e *Executor) Run(ctx context.Context, g models.DemandGroup, aoi models.AOI, batch models.Batch) (models.RetrievalResult, error) {
	estimIDs := make([]int, 0, len(g.Members))
	for _, m := range g.Members {
		estimIDs = append(estimIDs, m.EstimAlgoID)
	}
	req := provider.ComputeRequest{
		AOI:          aoi,
		ProductID:    g.Key.ProductID,
		ProcAlgoID:   g.Key.ProcAlgoID,
		EstimAlgoIDs: estimIDs,
		ReducerID:    g.Key.ReducerID,
		Dates:        batch.Dates,
	}

	id := report.GroupID(g.IDs())
	p := policy{tileScale: 1}
	var lastErr error

	for p.attempt = 0; p.attempt < maxAttempts; p.attempt++ {
		req.TileScale = p.tileScale
		result, err := e.provider.Retrieve(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		failure, ok := provider.AsFailure(err)
		if !ok {
			return nil, err
		}
		final := p.attempt == maxAttempts-1

		switch failure.Kind {
		case provider.FailTimeout:
			p.timeouts++
			if p.timeouts >= 2 {
				// Second consecutive timeout: fall back to one request per
				// imagery-backed date, keeping whatever succeeds.
				return e.perDateFallback(ctx, req, batch, id)
			}
		case provider.FailTooLarge:
			p.timeouts = 0
			if p.scaleUps < maxScaleEscalation && !final {
				p.scaleUps++
				p.tileScale *= 2
				e.rep.Info(id, fmt.Sprintf("Output too large; retrying with tile scale %d.", p.tileScale))
			}
		case provider.FailTransient:
			p.timeouts = 0
			if !final {
				e.sleep(e.retryDelay)
			}
		}
	}
	return nil, lastErr
}

// perDateFallback issues one request per available date, accumulating
// partial successes. A date that still fails is simply absent from the
// result; the fallback only fails hard when no date succeeds.
func (e *Executor) perDateFallback(ctx context.Context, req provider.ComputeRequest, batch models.Batch, id string) (models.RetrievalResult, error) {
	e.rep.Info(id, "Repeated computation timeouts; processing dates one by one.")
	merged := make(models.RetrievalResult)
	succeeded := false
	var lastErr error
	for _, date := range batch.Available {
		single := req
		single.Dates = []time.Time{date}
		result, err := e.provider.Retrieve(ctx, single)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		succeeded = true
		for k, v := range result {
			merged[k] = v
		}
	}
	if !succeeded {
		if lastErr == nil {
			lastErr = &provider.Failure{Kind: provider.FailTimeout, Message: "every per-date request failed"}
		}
		return nil, lastErr
	}
	return merged, nil
}
