package estimation

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
	"github.com/lucasuchoa98/geedar/services/sync/internal/store"
)

type fakeStore struct {
	rows       []store.BandRow
	loadedFor  int
	wantBands  []string
	upserts    []models.DataRow
	upsertNew  int
	upsertUpd  int
	nextVarID  int
	ensuredVar []string
}

func (f *fakeStore) LoadBandRows(_ context.Context, demandID int, bandNames []string, _ string) ([]store.BandRow, error) {
	f.loadedFor = demandID
	f.wantBands = bandNames
	return f.rows, nil
}

func (f *fakeStore) EnsureVariable(_ context.Context, name string) (int, error) {
	f.ensuredVar = append(f.ensuredVar, name)
	f.nextVarID++
	return f.nextVarID, nil
}

func (f *fakeStore) UpsertDerived(_ context.Context, w models.DataRow, _ int, existing bool) error {
	f.upserts = append(f.upserts, w)
	if existing {
		f.upsertUpd++
	} else {
		f.upsertNew++
	}
	return nil
}

func spmDemand() models.Demand {
	return models.Demand{ID: 9, ProductID: 101, EstimAlgoID: 1}
}

func TestRunAppliesAlgorithm(t *testing.T) {
	existingValue := 3.5
	fs := &fakeStore{rows: []store.BandRow{
		{SeriesID: 1, Time: "10:00", StatisticID: 2,
			Bands: map[string]float64{"sur_refl_b01": 500}},
		{SeriesID: 2, Time: "10:05", StatisticID: 2,
			Bands: map[string]float64{"sur_refl_b01": 800}, Existing: &existingValue},
	}}
	var buf bytes.Buffer
	rep := report.New(&buf)
	vars := map[string]int{}

	if err := New(fs, rep).Run(context.Background(), spmDemand(), vars); err != nil {
		t.Fatal(err)
	}
	if fs.loadedFor != 9 {
		t.Errorf("loaded demand %d, want 9", fs.loadedFor)
	}
	// Product 101 maps the red region to sur_refl_b01.
	if len(fs.wantBands) != 1 || fs.wantBands[0] != "sur_refl_b01" {
		t.Errorf("band names = %v", fs.wantBands)
	}
	if len(fs.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2", len(fs.upserts))
	}
	if fs.upsertNew != 1 || fs.upsertUpd != 1 {
		t.Errorf("new/update = %d/%d, want 1/1", fs.upsertNew, fs.upsertUpd)
	}
	if fs.upserts[0].Value <= 0 {
		t.Errorf("derived value = %v, want positive SPM", fs.upserts[0].Value)
	}
	if vars["spm"] == 0 {
		t.Error("spm not registered in the shared variable cache")
	}
	if !strings.Contains(buf.String(), "applied to 2 records") {
		t.Errorf("log missing result: %s", buf.String())
	}
}

func TestRunSkipsIncompleteRows(t *testing.T) {
	fs := &fakeStore{rows: []store.BandRow{
		{SeriesID: 1, StatisticID: 2, Bands: map[string]float64{"sur_refl_b02": 700}},
	}}
	rep := report.New(&bytes.Buffer{})

	if err := New(fs, rep).Run(context.Background(), spmDemand(), map[string]int{"spm": 5}); err != nil {
		t.Fatal(err)
	}
	if len(fs.upserts) != 0 {
		t.Errorf("upserts = %d, want 0 for rows missing the required band", len(fs.upserts))
	}
}

func TestRunSkipsNonFiniteResults(t *testing.T) {
	// red/10000 == C makes the Nechad denominator zero.
	fs := &fakeStore{rows: []store.BandRow{
		{SeriesID: 1, StatisticID: 2, Bands: map[string]float64{"sur_refl_b01": 1728}},
	}}
	rep := report.New(&bytes.Buffer{})

	if err := New(fs, rep).Run(context.Background(), spmDemand(), map[string]int{"spm": 5}); err != nil {
		t.Fatal(err)
	}
	for _, u := range fs.upserts {
		if math.IsNaN(u.Value) || math.IsInf(u.Value, 0) {
			t.Errorf("non-finite value persisted: %v", u.Value)
		}
	}
}

func TestRunIgnoresNonEstimatingDemand(t *testing.T) {
	fs := &fakeStore{}
	var buf bytes.Buffer
	rep := report.New(&buf)

	d := spmDemand()
	d.EstimAlgoID = 0
	if err := New(fs, rep).Run(context.Background(), d, map[string]int{}); err != nil {
		t.Fatal(err)
	}
	if fs.loadedFor != 0 {
		t.Error("store queried for a demand with no estimation algorithm")
	}
	if !strings.Contains(buf.String(), "Demand ignored") {
		t.Errorf("log missing skip warning: %s", buf.String())
	}
}

func TestRunNoStoredData(t *testing.T) {
	fs := &fakeStore{}
	var buf bytes.Buffer
	rep := report.New(&buf)

	if err := New(fs, rep).Run(context.Background(), spmDemand(), map[string]int{"spm": 5}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No stored satellite data") {
		t.Errorf("log missing no-data result: %s", buf.String())
	}
}
