package store

import (
	"context"
	"fmt"
	"strconv"
)

// AppSettings are the operator-tunable application attributes.
type AppSettings struct {
	KMLSubdir string
	LogFile   string
	RunCount  int
}

// LoadAppSettings reads the application attribute table.
func (s *Store) LoadAppSettings(ctx context.Context) (AppSettings, error) {
	rows, err := s.pool.Query(ctx, `SELECT attribute, value FROM geedar.application`)
	if err != nil {
		return AppSettings{}, fmt.Errorf("load application settings: %w", err)
	}
	defer rows.Close()

	settings := AppSettings{KMLSubdir: "KML", LogFile: "geedar_log.jsonl"}
	for rows.Next() {
		var attribute string
		var value *string
		if err := rows.Scan(&attribute, &value); err != nil {
			return AppSettings{}, err
		}
		if value == nil {
			continue
		}
		switch attribute {
		case "KMLSUBDIR":
			settings.KMLSubdir = *value
		case "LOGFILE":
			settings.LogFile = *value
		case "RUNCOUNT":
			n, err := strconv.Atoi(*value)
			if err != nil {
				return AppSettings{}, fmt.Errorf("malformed RUNCOUNT value %q", *value)
			}
			settings.RunCount = n
		}
	}
	return settings, rows.Err()
}

// BumpRun stamps the current version and run counter. It doubles as the
// run's write probe: failure means the store is not usable.
func (s *Store) BumpRun(ctx context.Context, version string, runCount int) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE geedar.application SET value = $1 WHERE attribute = 'VERSION'`, version); err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE geedar.application SET value = $1 WHERE attribute = 'RUNCOUNT'`, strconv.Itoa(runCount)); err != nil {
		return fmt.Errorf("update run counter: %w", err)
	}
	return nil
}
