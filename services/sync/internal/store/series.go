package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

// LoadTimeSeries returns the existing time-series records for a set of
// demands. The engine indexes them once per run; the writer keeps the
// index current as it inserts.
func (s *Store) LoadTimeSeries(ctx context.Context, demandIDs []int) ([]models.TimeSeriesRecord, error) {
	if len(demandIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, demand_id, date FROM geedar.time_series WHERE demand_id = ANY($1)`, demandIDs)
	if err != nil {
		return nil, fmt.Errorf("load time series: %w", err)
	}
	defer rows.Close()

	var out []models.TimeSeriesRecord
	for rows.Next() {
		var r models.TimeSeriesRecord
		var date time.Time
		if err := rows.Scan(&r.ID, &r.DemandID, &date); err != nil {
			return nil, err
		}
		r.Date = date.UTC().Truncate(24 * time.Hour)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadVariables returns the variable catalog as name → id.
func (s *Store) LoadVariables(ctx context.Context) (map[string]int, error) {
	return s.loadNamed(ctx, `SELECT id, name FROM geedar.variables WHERE name IS NOT NULL`)
}

// LoadStatistics returns the statistic catalog as name → id.
func (s *Store) LoadStatistics(ctx context.Context) (map[string]int, error) {
	return s.loadNamed(ctx, `SELECT id, name FROM geedar.statistics WHERE name IS NOT NULL`)
}

func (s *Store) loadNamed(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// EnsureVariable inserts a variable catalog row with the next surrogate
// id. Callers resolve against their cache first.
func (s *Store) EnsureVariable(ctx context.Context, name string) (int, error) {
	return s.insertNamed(ctx,
		`INSERT INTO geedar.variables (id, name)
SELECT COALESCE(MAX(id), 0) + 1, $1 FROM geedar.variables
RETURNING id`, name)
}

// EnsureStatistic inserts a statistic catalog row with the next surrogate id.
func (s *Store) EnsureStatistic(ctx context.Context, name string) (int, error) {
	return s.insertNamed(ctx,
		`INSERT INTO geedar.statistics (id, name)
SELECT COALESCE(MAX(id), 0) + 1, $1 FROM geedar.statistics
RETURNING id`, name)
}

func (s *Store) insertNamed(ctx context.Context, query, name string) (int, error) {
	var id int
	if err := s.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %q: %w", name, err)
	}
	return id, nil
}

// ApplyDateWrite commits one (demand, date) write set atomically and
// returns the time-series id it wrote under.
func (s *Store) ApplyDateWrite(ctx context.Context, w models.DateWrite) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin date write: %w", err)
	}
	defer tx.Rollback(ctx)

	seriesID := w.SeriesID
	if seriesID == 0 {
		if err := tx.QueryRow(ctx,
			`INSERT INTO geedar.time_series (demand_id, date) VALUES ($1, $2) RETURNING id`,
			w.DemandID, w.Date).Scan(&seriesID); err != nil {
			return 0, fmt.Errorf("insert time series: %w", err)
		}
	}

	if w.DeleteData {
		if _, err := tx.Exec(ctx,
			`DELETE FROM geedar.data WHERE time_series_id = $1`, seriesID); err != nil {
			return 0, fmt.Errorf("delete data rows: %w", err)
		}
	}

	if len(w.Rows) > 0 {
		batch := &pgx.Batch{}
		for _, row := range w.Rows {
			batch.Queue(
				`INSERT INTO geedar.data (time_series_id, variable_id, statistic_id, time, value)
VALUES ($1, $2, $3, $4, $5)`,
				seriesID, row.VariableID, row.StatisticID, row.Time, row.Value)
		}
		res := tx.SendBatch(ctx, batch)
		for range w.Rows {
			if _, err := res.Exec(); err != nil {
				res.Close()
				return 0, fmt.Errorf("insert data row: %w", err)
			}
		}
		if err := res.Close(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit date write: %w", err)
	}
	return seriesID, nil
}
