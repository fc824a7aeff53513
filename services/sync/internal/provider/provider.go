// Package provider defines the Compute Provider boundary: the remote
// imagery-analysis service that performs pixel selection, parameter
// estimation and spatial reduction, returning per-date variable values.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

// ComputeRequest describes one batch computation. The provider evaluates
// it however it likes; the engine only sees the final result.
type ComputeRequest struct {
	AOI          models.AOI
	ProductID    int
	ProcAlgoID   int
	EstimAlgoIDs []int
	ReducerID    int
	Dates        []time.Time
	// TileScale is an internal granularity hint, doubled by the executor
	// when the provider reports an oversized output.
	TileScale int
}

// Provider is the computation capability the executor depends on.
type Provider interface {
	// Area returns the AOI's area in square meters.
	Area(ctx context.Context, aoi models.AOI) (float64, error)
	// AvailableDates returns the subset of dates with source imagery for
	// the product over the AOI.
	AvailableDates(ctx context.Context, productID int, aoi models.AOI, dates []time.Time) ([]time.Time, error)
	// Retrieve runs the computation and returns per-date results. An empty
	// result is success with no qualifying dates; failures carry a Failure
	// error.
	Retrieve(ctx context.Context, req ComputeRequest) (models.RetrievalResult, error)
}

// FailureKind classifies provider failures for the retry policy.
type FailureKind int

const (
	// FailTimeout: the computation exceeded the provider's time budget.
	FailTimeout FailureKind = iota
	// FailTooLarge: the computation output exceeded the provider's size
	// limit; retried at a coarser tile scale.
	FailTooLarge
	// FailTransient: a network or service hiccup; retried after a delay.
	FailTransient
)

func (k FailureKind) String() string {
	switch k {
	case FailTimeout:
		return "timeout"
	case FailTooLarge:
		return "output too large"
	case FailTransient:
		return "transient"
	}
	return "unknown"
}

// Failure is a classified provider error.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return "provider failure: " + f.Kind.String()
	}
	return "provider failure (" + f.Kind.String() + "): " + f.Message
}

// AsFailure extracts a Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
