package store

import (
	"context"
	"fmt"
	"math"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

const loadDemandsSQL = `
SELECT d.id, d.status, d.station_id, d.product_id, d.proc_algo_id, d.estim_algo_id,
       d.reducer_id, d.start_date, d.end_date, d.aoi_mode, d.aoi_radius, d.aoi_file,
       s.code, s.name, s.lat, s.long
FROM geedar.demands d
INNER JOIN geedar.stations s ON d.station_id = s.id
WHERE d.status > 0
ORDER BY d.id`

// LoadDemandRows returns every non-suspended demand joined with its
// station, in catalog order.
func (s *Store) LoadDemandRows(ctx context.Context) ([]models.DemandRow, error) {
	rows, err := s.pool.Query(ctx, loadDemandsSQL)
	if err != nil {
		return nil, fmt.Errorf("load demands: %w", err)
	}
	defer rows.Close()

	var out []models.DemandRow
	for rows.Next() {
		var r models.DemandRow
		var name, code *string
		var lat, long *float64
		if err := rows.Scan(
			&r.ID, &r.Status, &r.StationID, &r.ProductID, &r.ProcAlgoID, &r.EstimAlgoID,
			&r.ReducerID, &r.StartDate, &r.EndDate, &r.AoiMode, &r.AoiRadius, &r.AoiFile,
			&code, &name, &lat, &long,
		); err != nil {
			return nil, err
		}
		if code != nil {
			r.StationCode = *code
		}
		if name != nil {
			r.StationName = *name
		}
		r.StationLat, r.StationLong = nanIfNil(lat), nanIfNil(long)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResetDemandStatus clears a transient status override back to the
// standing active value. Committed before retrieval so a crash mid-run
// cannot re-trigger the override.
func (s *Store) ResetDemandStatus(ctx context.Context, demandID int) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE geedar.demands SET status = $1 WHERE id = $2`, models.StatusActive, demandID); err != nil {
		return fmt.Errorf("reset demand %d status: %w", demandID, err)
	}
	return nil
}

func nanIfNil(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
