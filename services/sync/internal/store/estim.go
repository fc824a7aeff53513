package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

// BandRow is one pivoted row of stored band values for a demand: the
// values of each required band under one statistic for one date, plus the
// derived variable's current value when present.
type BandRow struct {
	SeriesID    int
	Date        time.Time
	Time        string
	StatisticID int
	Bands       map[string]float64
	Existing    *float64
}

// LoadBandRows reads the stored base-band values needed to re-run an
// estimation algorithm locally. Band names come from the closed product
// catalog. Only central-tendency and extremum statistics are considered,
// matching what estimation formulas are defined over.
func (s *Store) LoadBandRows(ctx context.Context, demandID int, bandNames []string, paramName string) ([]BandRow, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ts.id, ts.date, COALESCE(MIN(d.time), '00:00'), d.statistic_id")
	for _, band := range bandNames {
		fmt.Fprintf(&sb, ",\n  MAX(CASE WHEN v.name = '%s' THEN d.value END)", escapeName(band))
	}
	fmt.Fprintf(&sb, ",\n  MAX(CASE WHEN v.name = '%s' THEN d.value END)", escapeName(paramName))
	sb.WriteString(`
FROM geedar.data d
JOIN geedar.variables v ON d.variable_id = v.id
JOIN geedar.statistics st ON d.statistic_id = st.id
JOIN geedar.time_series ts ON d.time_series_id = ts.id
WHERE ts.demand_id = $1 AND st.name IN ('mean', 'median', 'min', 'max')
GROUP BY ts.id, ts.date, d.statistic_id
ORDER BY ts.date, d.statistic_id`)

	rows, err := s.pool.Query(ctx, sb.String(), demandID)
	if err != nil {
		return nil, fmt.Errorf("load band values: %w", err)
	}
	defer rows.Close()

	var out []BandRow
	for rows.Next() {
		r := BandRow{Bands: make(map[string]float64, len(bandNames))}
		values := make([]*float64, len(bandNames))
		dest := []any{&r.SeriesID, &r.Date, &r.Time, &r.StatisticID}
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &r.Existing)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, band := range bandNames {
			if values[i] != nil {
				r.Bands[band] = *values[i]
			}
		}
		r.Date = r.Date.UTC().Truncate(24 * time.Hour)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertDerived writes a locally estimated value: a fresh data row when
// the derived variable was absent for the series, an update otherwise.
func (s *Store) UpsertDerived(ctx context.Context, w models.DataRow, seriesID int, existing bool) error {
	var err error
	if existing {
		_, err = s.pool.Exec(ctx,
			`UPDATE geedar.data SET value = $1
WHERE time_series_id = $2 AND variable_id = $3 AND statistic_id = $4`,
			w.Value, seriesID, w.VariableID, w.StatisticID)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO geedar.data (time_series_id, variable_id, statistic_id, time, value)
VALUES ($1, $2, $3, $4, $5)`,
			seriesID, w.VariableID, w.StatisticID, w.Time, w.Value)
	}
	if err != nil {
		return fmt.Errorf("write derived value: %w", err)
	}
	return nil
}

func escapeName(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
