// Package writer reconciles retrieval results into the store: one
// transaction per (demand, date), reusing existing time-series records,
// stamping confirmed-empty gaps, and resolving variable and statistic
// catalog entries on first use.
package writer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/catalog"
	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
)

// Store is the mutation surface the writer needs.
type Store interface {
	EnsureVariable(ctx context.Context, name string) (int, error)
	EnsureStatistic(ctx context.Context, name string) (int, error)
	ApplyDateWrite(ctx context.Context, w models.DateWrite) (int, error)
}

// Writer applies batch results. It owns the per-run caches of catalog
// ids and of existing time-series records, keeping them current as it
// inserts so re-checking is in-memory.
type Writer struct {
	store  Store
	rep    *report.Reporter
	vars   map[string]int
	stats  map[string]int
	series map[int]map[string]int
}

// New builds a Writer around preloaded catalog and series caches. series
// maps demand id → date string → time-series id and is shared with the
// planner's view of existing records.
func New(store Store, rep *report.Reporter, vars, stats map[string]int, series map[int]map[string]int) *Writer {
	return &Writer{store: store, rep: rep, vars: vars, stats: stats, series: series}
}

// WriteBatch persists one batch result for every group member, in
// ascending date order, committing after each date.
func (w *Writer) WriteBatch(ctx context.Context, g models.DemandGroup, batch models.Batch, bounds map[int]models.HistoryBounds, result models.RetrievalResult) error {
	derived := catalog.DerivedVariables(g)
	span := fmt.Sprintf("dates %s to %s", models.FormatDate(batch.First()), models.FormatDate(batch.Last()))
	empty := len(result) == 0

	for _, member := range g.Members {
		b := bounds[member.ID]
		if empty && (batch.First().After(b.Latest) || batch.Last().Before(b.Earliest) || !b.HasHistory) {
			// Nothing retrieved and the batch sits outside the member's
			// observed range: leave the dates open for future runs.
			w.rep.Result(report.DemandID(member.ID), "There is no available data for "+span+".")
			continue
		}

		stubs := 0
		for _, date := range batch.Dates {
			wrote, created, err := w.writeDate(ctx, member.ID, g.Mode, date, b, result, derived)
			if err != nil {
				return err
			}
			if created && !wrote {
				stubs++
			}
		}

		id := report.DemandID(member.ID)
		if empty {
			msg := "There is no available data for " + span + "."
			if stubs > 0 {
				msg += " The time series was updated, though, to fill the date gaps."
			}
			w.rep.Result(id, msg)
		} else {
			w.rep.Result(id, "Saved the records for "+span+".")
		}
	}
	return nil
}

// writeDate applies the write set for one (member, date). It returns
// whether data rows were written and whether a time-series record was
// created.
func (w *Writer) writeDate(ctx context.Context, demandID int, mode models.RunMode, date time.Time, b models.HistoryBounds, result models.RetrievalResult, derived map[string]bool) (wrote, created bool, err error) {
	key := models.FormatDate(date)
	seriesID, exists := w.series[demandID][key]
	day, inResult := result.Day(date)

	dw := models.DateWrite{DemandID: demandID, Date: date}
	switch {
	case exists:
		dw.SeriesID = seriesID
		dw.DeleteData = mode == models.ModeOverwrite
	case inResult || (date.After(b.Earliest) && date.Before(b.Latest)):
		// Create the record even without data when the date sits inside
		// the observed range, so the gap is not re-queried next run.
		created = true
	default:
		// Beyond the frontier with no data: imagery may simply not exist
		// yet. Leave the date open.
		return false, false, nil
	}

	if inResult {
		dw.Rows, err = w.dataRows(ctx, day, derived)
		if err != nil {
			return false, false, err
		}
	}

	if exists && !dw.DeleteData && len(dw.Rows) == 0 {
		return false, false, nil
	}

	newID, err := w.store.ApplyDateWrite(ctx, dw)
	if err != nil {
		return false, false, err
	}
	if !exists {
		if w.series[demandID] == nil {
			w.series[demandID] = make(map[string]int)
		}
		w.series[demandID][key] = newID
	}
	return len(dw.Rows) > 0, created, nil
}

// dataRows resolves each returned variable into catalog ids.
func (w *Writer) dataRows(ctx context.Context, day models.DayResult, derived map[string]bool) ([]models.DataRow, error) {
	names := make([]string, 0, len(day.Values))
	for name := range day.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]models.DataRow, 0, len(names))
	for _, name := range names {
		variable, statistic := catalog.SplitVariable(name, derived)
		statID, err := w.statisticID(ctx, statistic)
		if err != nil {
			return nil, err
		}
		varID, err := w.variableID(ctx, variable)
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.DataRow{
			VariableID:  varID,
			StatisticID: statID,
			Time:        day.Time,
			Value:       day.Values[name],
		})
	}
	return rows, nil
}

func (w *Writer) variableID(ctx context.Context, name string) (int, error) {
	if id, ok := w.vars[name]; ok {
		return id, nil
	}
	id, err := w.store.EnsureVariable(ctx, name)
	if err != nil {
		return 0, err
	}
	w.vars[name] = id
	w.rep.Info("-", fmt.Sprintf("Variable '%s' added to the catalog.", name))
	return id, nil
}

func (w *Writer) statisticID(ctx context.Context, name string) (int, error) {
	if id, ok := w.stats[name]; ok {
		return id, nil
	}
	id, err := w.store.EnsureStatistic(ctx, name)
	if err != nil {
		return 0, err
	}
	w.stats[name] = id
	w.rep.Info("-", fmt.Sprintf("Statistic '%s' added to the catalog.", name))
	return id, nil
}
