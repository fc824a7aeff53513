package store

import (
	"context"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs. Uniqueness of
// (demand_id, date) in time_series is deliberately not constrained here:
// the persistence writer enforces it by querying before inserting.
const SchemaSQL = `
CREATE SCHEMA IF NOT EXISTS geedar;

CREATE TABLE IF NOT EXISTS geedar.application (
	attribute TEXT UNIQUE NOT NULL,
	value     TEXT
);

INSERT INTO geedar.application (attribute, value) VALUES
	('NAME', 'GEEDaR'),
	('VERSION', '0.0.0'),
	('RUNCOUNT', '0'),
	('KMLSUBDIR', 'KML'),
	('LOGFILE', 'geedar_log.jsonl')
ON CONFLICT (attribute) DO NOTHING;

CREATE TABLE IF NOT EXISTS geedar.stations (
	id       INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	code     TEXT NOT NULL,
	name     TEXT,
	lat      DOUBLE PRECISION,
	long     DOUBLE PRECISION,
	location TEXT,
	visible  INTEGER NOT NULL DEFAULT 1
);

INSERT INTO geedar.stations (id, code, name, lat, long, visible)
VALUES (0, '1547S04749W0', 'Test Site', -15.787233, -47.81478, 0)
ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS geedar.demands (
	id            INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	status        INTEGER NOT NULL DEFAULT 1,
	station_id    INTEGER NOT NULL REFERENCES geedar.stations (id),
	product_id    INTEGER NOT NULL,
	proc_algo_id  INTEGER NOT NULL DEFAULT 0,
	estim_algo_id INTEGER NOT NULL DEFAULT 0,
	reducer_id    INTEGER NOT NULL DEFAULT 1,
	start_date    TEXT DEFAULT 'auto',
	end_date      TEXT DEFAULT 'auto',
	aoi_mode      INTEGER NOT NULL DEFAULT 0,
	aoi_radius    INTEGER,
	aoi_file      TEXT
);

CREATE TABLE IF NOT EXISTS geedar.time_series (
	id             INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	demand_id      INTEGER NOT NULL REFERENCES geedar.demands (id),
	date           DATE NOT NULL,
	processed_date DATE NOT NULL DEFAULT CURRENT_DATE
);

CREATE INDEX IF NOT EXISTS time_series_demand_date
	ON geedar.time_series (demand_id, date);

CREATE TABLE IF NOT EXISTS geedar.variables (
	id    INTEGER PRIMARY KEY,
	name  TEXT UNIQUE,
	descr TEXT
);

CREATE TABLE IF NOT EXISTS geedar.statistics (
	id   INTEGER PRIMARY KEY,
	name TEXT
);

INSERT INTO geedar.statistics (id, name) VALUES
	(0, 'none'),
	(1, 'median'),
	(2, 'mean'),
	(3, 'stdDev'),
	(4, 'min'),
	(5, 'max'),
	(6, 'count'),
	(7, 'sum')
ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS geedar.data (
	time_series_id INTEGER NOT NULL REFERENCES geedar.time_series (id),
	variable_id    INTEGER NOT NULL,
	statistic_id   INTEGER NOT NULL,
	time           TEXT,
	value          DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS data_time_series
	ON geedar.data (time_series_id);

CREATE TABLE IF NOT EXISTS geedar.products (
	id     INTEGER PRIMARY KEY,
	name   TEXT,
	sensor TEXT,
	descr  TEXT
);

CREATE TABLE IF NOT EXISTS geedar.proc_algos (
	id    INTEGER PRIMARY KEY,
	name  TEXT,
	descr TEXT,
	ref   TEXT
);

CREATE TABLE IF NOT EXISTS geedar.estim_algos (
	id    INTEGER PRIMARY KEY,
	name  TEXT,
	descr TEXT,
	model TEXT,
	ref   TEXT,
	param TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS geedar.reducers (
	id    INTEGER PRIMARY KEY,
	descr TEXT
);
`

// CreateSchema bootstraps a fresh database.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// schemaProbes touch every table the engine depends on; any failure is a
// schema-compatibility error and aborts the run.
var schemaProbes = []string{
	`SELECT attribute, value FROM geedar.application LIMIT 1`,
	`SELECT id, code, name, lat, long FROM geedar.stations LIMIT 1`,
	`SELECT id, status, station_id, product_id, proc_algo_id, estim_algo_id, reducer_id,
		start_date, end_date, aoi_mode, aoi_radius, aoi_file FROM geedar.demands LIMIT 1`,
	`SELECT id, demand_id, date, processed_date FROM geedar.time_series LIMIT 1`,
	`SELECT id, name FROM geedar.variables LIMIT 1`,
	`SELECT id, name FROM geedar.statistics LIMIT 1`,
	`SELECT time_series_id, variable_id, statistic_id, time, value FROM geedar.data LIMIT 1`,
}

// CheckSchema verifies that the expected tables and columns exist.
func (s *Store) CheckSchema(ctx context.Context) error {
	for _, probe := range schemaProbes {
		rows, err := s.pool.Query(ctx, probe)
		if err != nil {
			return fmt.Errorf("schema check failed: %w", err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("schema check failed: %w", err)
		}
	}
	return nil
}
