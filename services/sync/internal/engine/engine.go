// Package engine drives the synchronization pipeline: validate and group
// demands, plan date ranges, schedule capacity-bounded batches, execute
// them against the provider and reconcile results into the store. It runs
// fully sequentially; demand groups process in catalog order and dates in
// ascending order.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/catalog"
	"github.com/lucasuchoa98/geedar/services/sync/internal/executor"
	"github.com/lucasuchoa98/geedar/services/sync/internal/kml"
	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/planner"
	"github.com/lucasuchoa98/geedar/services/sync/internal/provider"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
	"github.com/lucasuchoa98/geedar/services/sync/internal/store"
	"github.com/lucasuchoa98/geedar/services/sync/internal/writer"
)

// Store is the store surface the engine needs. *store.Store satisfies it.
type Store interface {
	LoadDemandRows(ctx context.Context) ([]models.DemandRow, error)
	ResetDemandStatus(ctx context.Context, demandID int) error
	LoadTimeSeries(ctx context.Context, demandIDs []int) ([]models.TimeSeriesRecord, error)
	LoadVariables(ctx context.Context) (map[string]int, error)
	LoadStatistics(ctx context.Context) (map[string]int, error)
	EnsureVariable(ctx context.Context, name string) (int, error)
	EnsureStatistic(ctx context.Context, name string) (int, error)
	ApplyDateWrite(ctx context.Context, w models.DateWrite) (int, error)
	LoadBandRows(ctx context.Context, demandID int, bandNames []string, paramName string) ([]store.BandRow, error)
	UpsertDerived(ctx context.Context, w models.DataRow, seriesID int, existing bool) error
}

// Estimator matches estimation.Estimator.
type Estimator interface {
	Run(ctx context.Context, d models.Demand, vars map[string]int) error
}

// Config carries the engine's run parameters.
type Config struct {
	KMLDir        string
	MaxProcPixels int
	DryRun        bool
	// Now resolves "auto" end dates; tests pin it.
	Now func() time.Time
}

// Engine executes one synchronization run.
type Engine struct {
	store       Store
	provider    provider.Provider
	exec        *executor.Executor
	rep         *report.Reporter
	cfg         Config
	estimator   Estimator
	loadPolygon func(string) ([][][2]float64, error)
}

// New wires an Engine. estimator may be nil when estimation mode is not
// in play (tests).
func New(st Store, p provider.Provider, exec *executor.Executor, est Estimator, rep *report.Reporter, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:       st,
		provider:    p,
		exec:        exec,
		rep:         rep,
		cfg:         cfg,
		estimator:   est,
		loadPolygon: kml.PolygonsFromFile,
	}
}

// Run processes every standing demand under the given mode. The returned
// error is fatal (store connectivity or write failure); demand- and
// batch-level problems are reported and skipped.
func (e *Engine) Run(ctx context.Context, mode models.RunMode) error {
	e.rep.Benchmark("Starting " + mode.String() + " run.")
	defer e.rep.Benchmark("Finishing " + mode.String() + " run.")

	rows, err := e.store.LoadDemandRows(ctx)
	if err != nil {
		return err
	}

	demands := catalog.Validate(rows, catalog.ValidateOptions{KMLDir: e.cfg.KMLDir, Today: e.cfg.Now()}, e.rep)
	if len(demands) == 0 {
		e.rep.SetError()
		e.rep.Warning("-", "No valid demand records found.")
		return nil
	}

	ids := make([]int, 0, len(demands))
	for _, d := range demands {
		ids = append(ids, d.ID)
	}
	records, err := e.store.LoadTimeSeries(ctx, ids)
	if err != nil {
		return err
	}
	series := indexSeries(records)

	vars, err := e.store.LoadVariables(ctx)
	if err != nil {
		return err
	}
	stats, err := e.store.LoadStatistics(ctx)
	if err != nil {
		return err
	}
	w := writer.New(e.store, e.rep, vars, stats, series)

	for _, g := range catalog.GroupDemands(demands, mode) {
		lead := g.Members[0]
		if lead.Status > models.StatusActive {
			// Reset the transient override before any retrieval so a crash
			// mid-group cannot replay it.
			if err := e.store.ResetDemandStatus(ctx, lead.ID); err != nil {
				return err
			}
		}

		if g.Mode == models.ModeEstimation {
			if e.estimator == nil {
				continue
			}
			if err := e.estimator.Run(ctx, lead, vars); err != nil {
				return err
			}
			continue
		}

		if err := e.processGroup(ctx, g, series, w); err != nil {
			return err
		}
	}
	return nil
}

// processGroup runs the planner → scheduler → executor → writer pipeline
// for one retrieval group. Only store failures propagate.
func (e *Engine) processGroup(ctx context.Context, g models.DemandGroup, series map[int]map[string]int, w *writer.Writer) error {
	gid := report.GroupID(g.IDs())
	lead := g.Members[0]

	aoi, err := catalog.ResolveAOI(lead, e.loadPolygon)
	if err != nil {
		e.rep.Error(gid, err.Error())
		return nil
	}

	product := catalog.Products[g.Key.ProductID]
	productStart, err := models.ParseDate(product.StartDate)
	if err != nil {
		productStart = time.Time{}
	}
	start, end := planner.Span(g, productStart)
	span := planner.CalendarDates(start, end)
	pending := planner.Pending(span, g.Mode, series, g.IDs())

	bounds := make(map[int]models.HistoryBounds, len(g.Members))
	for _, m := range g.Members {
		bounds[m.ID] = planner.Bounds(series[m.ID], start)
	}

	if len(pending) == 0 {
		e.rep.Result(gid, "There is no new data to be retrieved. The time series is up to date.")
		return nil
	}

	availList, err := e.provider.AvailableDates(ctx, g.Key.ProductID, aoi, pending)
	if err != nil {
		e.rep.Error(gid, fmt.Sprintf("Failed to query available dates: %v.", err))
		return nil
	}
	available := make(map[string]bool, len(availList))
	for _, d := range availList {
		available[models.FormatDate(d)] = true
	}

	area, err := e.provider.Area(ctx, aoi)
	if err != nil {
		e.rep.Error(gid, fmt.Sprintf("Failed to query the AOI area: %v.", err))
		return nil
	}
	pixels := planner.PixelCount(area, product.Resolution)
	size := planner.EffectiveBatchSize(pixels, e.cfg.MaxProcPixels, catalog.ProcAlgos[g.Key.ProcAlgoID].MaxSimImages)

	batches := planner.Batches(pending, available, size)
	if len(batches) == 0 {
		e.rep.Result(gid, "There is no new data to be retrieved. The time series is up to date.")
		return nil
	}

	for _, batch := range batches {
		log.Printf("[%s] requesting data for dates %s to %s", gid,
			models.FormatDate(batch.First()), models.FormatDate(batch.Last()))

		result, err := e.exec.Run(ctx, g, aoi, batch)
		if err != nil {
			e.rep.Error(gid, fmt.Sprintf("Failed to retrieve data for dates %s to %s.",
				models.FormatDate(batch.First()), models.FormatDate(batch.Last())))
			continue
		}

		if e.cfg.DryRun {
			log.Printf("[%s] dry-run: skipping writes for %d dates (%d with results)",
				gid, len(batch.Dates), len(result))
			continue
		}

		if err := w.WriteBatch(ctx, g, batch, bounds, result); err != nil {
			return err
		}
	}
	return nil
}

// indexSeries builds the demand → date → time-series-id index. When
// duplicates exist (abnormal), the highest id wins, matching the writer's
// reuse-the-latest behavior.
func indexSeries(records []models.TimeSeriesRecord) map[int]map[string]int {
	series := make(map[int]map[string]int)
	for _, r := range records {
		byDate := series[r.DemandID]
		if byDate == nil {
			byDate = make(map[string]int)
			series[r.DemandID] = byDate
		}
		key := models.FormatDate(r.Date)
		if existing, ok := byDate[key]; !ok || r.ID > existing {
			byDate[key] = r.ID
		}
	}
	return series
}
