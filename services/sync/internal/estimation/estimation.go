// Package estimation recomputes a derived variable from base band values
// already in the store, without querying the provider. This is the
// "estimation" run mode, used to backfill a new algorithm over history.
package estimation

import (
	"context"
	"fmt"
	"math"

	"github.com/lucasuchoa98/geedar/services/sync/internal/catalog"
	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
	"github.com/lucasuchoa98/geedar/services/sync/internal/store"
)

// Store is the store surface the estimator needs.
type Store interface {
	LoadBandRows(ctx context.Context, demandID int, bandNames []string, paramName string) ([]store.BandRow, error)
	EnsureVariable(ctx context.Context, name string) (int, error)
	UpsertDerived(ctx context.Context, w models.DataRow, seriesID int, existing bool) error
}

// Estimator applies estimation algorithms to stored series.
type Estimator struct {
	store Store
	rep   *report.Reporter
}

// New builds an Estimator.
func New(st Store, rep *report.Reporter) *Estimator {
	return &Estimator{store: st, rep: rep}
}

// Run re-estimates the demand's derived variable over its stored history.
// vars is the run's shared variable-id cache. Demand-level problems are
// reported and skipped; store failures abort.
func (e *Estimator) Run(ctx context.Context, d models.Demand, vars map[string]int) error {
	id := report.DemandID(d.ID)
	algo, ok := catalog.EstimAlgos[d.EstimAlgoID]
	if !ok || algo.ParamName == "" || algo.Eval == nil {
		e.rep.Warning(id, fmt.Sprintf("The estimation algorithm #%d yields no estimated variable. Demand ignored.", d.EstimAlgoID))
		return nil
	}

	product, ok := catalog.Products[d.ProductID]
	if !ok {
		e.rep.Warning(id, fmt.Sprintf("Unrecognized product ID: %d. Demand ignored.", d.ProductID))
		return nil
	}

	// Resolve the algorithm's spectral regions to the product's bands.
	regionToBand := make(map[string]string, len(algo.RequiredBands))
	bandNames := make([]string, 0, len(algo.RequiredBands))
	for _, region := range algo.RequiredBands {
		band, ok := product.Bands[region]
		if !ok {
			e.rep.Warning(id, fmt.Sprintf("The required bands for the estimation algorithm #%d were not defined for product %d.", d.EstimAlgoID, d.ProductID))
			return nil
		}
		regionToBand[region] = band
		bandNames = append(bandNames, band)
	}

	varID, err := e.variableID(ctx, algo.ParamName, vars)
	if err != nil {
		return err
	}

	rows, err := e.store.LoadBandRows(ctx, d.ID, bandNames, algo.ParamName)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		e.rep.Result(id, "No stored satellite data to apply the estimation algorithm to.")
		return nil
	}

	written := 0
	for _, row := range rows {
		input := make(map[string]float64, len(regionToBand))
		complete := true
		for region, band := range regionToBand {
			v, ok := row.Bands[band]
			if !ok {
				complete = false
				break
			}
			input[region] = v
		}
		if !complete {
			continue
		}

		value := algo.Eval(input)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}

		w := models.DataRow{VariableID: varID, StatisticID: row.StatisticID, Time: row.Time, Value: value}
		if err := e.store.UpsertDerived(ctx, w, row.SeriesID, row.Existing != nil); err != nil {
			return err
		}
		written++
	}

	e.rep.Result(id, fmt.Sprintf("Estimation algorithm successfully applied to %d records.", written))
	return nil
}

func (e *Estimator) variableID(ctx context.Context, name string, vars map[string]int) (int, error) {
	if id, ok := vars[name]; ok {
		return id, nil
	}
	id, err := e.store.EnsureVariable(ctx, name)
	if err != nil {
		return 0, err
	}
	vars[name] = id
	e.rep.Info("-", fmt.Sprintf("Variable '%s' added to the catalog.", name))
	return id, nil
}
