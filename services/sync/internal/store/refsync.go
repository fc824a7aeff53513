package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lucasuchoa98/geedar/services/sync/internal/catalog"
)

// SyncReferenceTables upserts the in-code product, algorithm and reducer
// catalogs into their reference tables so operators can browse them.
func (s *Store) SyncReferenceTables(ctx context.Context) error {
	batch := &pgx.Batch{}

	for _, p := range catalog.Products {
		batch.Queue(`INSERT INTO geedar.products (id, name, sensor, descr) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sensor = EXCLUDED.sensor, descr = EXCLUDED.descr`,
			p.ID, p.Name, p.Sensor, p.Description)
	}
	for _, a := range catalog.ProcAlgos {
		batch.Queue(`INSERT INTO geedar.proc_algos (id, name, descr, ref) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, descr = EXCLUDED.descr, ref = EXCLUDED.ref`,
			a.ID, a.Name, a.Description, a.Ref)
	}
	for _, a := range catalog.EstimAlgos {
		batch.Queue(`INSERT INTO geedar.estim_algos (id, name, descr, model, ref, param) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, descr = EXCLUDED.descr, model = EXCLUDED.model, ref = EXCLUDED.ref, param = EXCLUDED.param`,
			a.ID, a.Name, a.Description, a.Model, a.Ref, a.ParamName)
	}
	for _, r := range catalog.Reducers {
		batch.Queue(`INSERT INTO geedar.reducers (id, descr) VALUES ($1,$2)
ON CONFLICT (id) DO UPDATE SET descr = EXCLUDED.descr`,
			r.ID, r.Description)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	total := len(catalog.Products) + len(catalog.ProcAlgos) + len(catalog.EstimAlgos) + len(catalog.Reducers)
	for i := 0; i < total; i++ {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("sync reference tables: %w", err)
		}
	}
	return nil
}
