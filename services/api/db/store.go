package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Station represents a monitoring site record.
type Station struct {
	ID       int      `json:"id"`
	Code     string   `json:"code"`
	Name     *string  `json:"name,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Long     *float64 `json:"long,omitempty"`
	Location *string  `json:"location,omitempty"`
}

const listStationsSQL = `
    SELECT id, code, name, lat, long, location
    FROM geedar.stations
    WHERE visible > 0
    ORDER BY id
`

// ListStations returns all visible stations.
func (s *Store) ListStations(ctx context.Context) ([]Station, error) {
	rows, err := s.pool.Query(ctx, listStationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]Station, 0)
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Lat, &st.Long, &st.Location); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

const getStationSQL = `
    SELECT id, code, name, lat, long, location
    FROM geedar.stations
    WHERE id = $1
`

// GetStation returns a single station by id.
func (s *Store) GetStation(ctx context.Context, id int) (Station, error) {
	var st Station
	err := s.pool.QueryRow(ctx, getStationSQL, id).
		Scan(&st.ID, &st.Code, &st.Name, &st.Lat, &st.Long, &st.Location)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, ErrNotFound
	}
	return st, err
}

// Demand represents a standing retrieval request.
type Demand struct {
	ID          int     `json:"id"`
	Status      int     `json:"status"`
	StationID   int     `json:"station_id"`
	StationCode string  `json:"station_code"`
	ProductID   int     `json:"product_id"`
	ProcAlgoID  int     `json:"proc_algo_id"`
	EstimAlgoID int     `json:"estim_algo_id"`
	ReducerID   int     `json:"reducer_id"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

const listDemandsSQL = `
    SELECT d.id, d.status, d.station_id, s.code, d.product_id,
        d.proc_algo_id, d.estim_algo_id, d.reducer_id, d.start_date, d.end_date
    FROM geedar.demands d
    JOIN geedar.stations s ON s.id = d.station_id
    ORDER BY d.id
`

// ListDemands returns every demand with its station code.
func (s *Store) ListDemands(ctx context.Context) ([]Demand, error) {
	rows, err := s.pool.Query(ctx, listDemandsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	demands := make([]Demand, 0)
	for rows.Next() {
		var d Demand
		if err := rows.Scan(
			&d.ID,
			&d.Status,
			&d.StationID,
			&d.StationCode,
			&d.ProductID,
			&d.ProcAlgoID,
			&d.EstimAlgoID,
			&d.ReducerID,
			&d.StartDate,
			&d.EndDate,
		); err != nil {
			return nil, err
		}
		demands = append(demands, d)
	}
	return demands, rows.Err()
}

// DataPoint is one value of a demand's time series.
type DataPoint struct {
	Date      time.Time `json:"date"`
	Time      *string   `json:"time,omitempty"`
	Variable  string    `json:"variable"`
	Statistic string    `json:"statistic"`
	Value     *float64  `json:"value,omitempty"`
}

// SeriesQuery holds filters for retrieving time series data.
type SeriesQuery struct {
	DemandID int
	Variable string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

const seriesBaseSQL = `
    SELECT ts.date, d.time, v.name, st.name, d.value
    FROM geedar.time_series ts
    JOIN geedar.data d ON d.time_series_id = ts.id
    JOIN geedar.variables v ON v.id = d.variable_id
    JOIN geedar.statistics st ON st.id = d.statistic_id
    WHERE ts.demand_id = $1
`

// FetchSeries returns time series data points for a demand.
func (s *Store) FetchSeries(ctx context.Context, q SeriesQuery) ([]DataPoint, error) {
	query := seriesBaseSQL
	args := []interface{}{q.DemandID}

	if q.Variable != "" {
		args = append(args, q.Variable)
		query += " AND v.name = $" + strconv.Itoa(len(args))
	}
	if q.Since != nil {
		args = append(args, *q.Since)
		query += " AND ts.date >= $" + strconv.Itoa(len(args))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		query += " AND ts.date <= $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY ts.date DESC, v.name, st.name"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]DataPoint, 0)
	for rows.Next() {
		var p DataPoint
		if err := rows.Scan(&p.Date, &p.Time, &p.Variable, &p.Statistic, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

const listVariablesSQL = `
    SELECT DISTINCT v.name
    FROM geedar.time_series ts
    JOIN geedar.data d ON d.time_series_id = ts.id
    JOIN geedar.variables v ON v.id = d.variable_id
    WHERE ts.demand_id = $1
    ORDER BY v.name
`

// ListVariables returns the distinct variable names recorded for a demand.
func (s *Store) ListVariables(ctx context.Context, demandID int) ([]string, error) {
	rows, err := s.pool.Query(ctx, listVariablesSQL, demandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
