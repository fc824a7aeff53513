package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/executor"
	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/provider"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
	"github.com/lucasuchoa98/geedar/services/sync/internal/store"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// fakeStore backs a full engine run in memory.
type fakeStore struct {
	demands     []models.DemandRow
	records     []models.TimeSeriesRecord
	resets      []int
	writes      []models.DateWrite
	estimations int
	nextID      int
}

func (f *fakeStore) LoadDemandRows(context.Context) ([]models.DemandRow, error) {
	return f.demands, nil
}

func (f *fakeStore) ResetDemandStatus(_ context.Context, demandID int) error {
	f.resets = append(f.resets, demandID)
	return nil
}

func (f *fakeStore) LoadTimeSeries(context.Context, []int) ([]models.TimeSeriesRecord, error) {
	return f.records, nil
}

func (f *fakeStore) LoadVariables(context.Context) (map[string]int, error) {
	return map[string]int{"sur_refl_b01": 1}, nil
}

func (f *fakeStore) LoadStatistics(context.Context) (map[string]int, error) {
	return map[string]int{"none": 0, "median": 1, "mean": 2}, nil
}

func (f *fakeStore) EnsureVariable(context.Context, string) (int, error) {
	f.nextID++
	return 100 + f.nextID, nil
}

func (f *fakeStore) EnsureStatistic(context.Context, string) (int, error) {
	f.nextID++
	return 100 + f.nextID, nil
}

func (f *fakeStore) ApplyDateWrite(_ context.Context, w models.DateWrite) (int, error) {
	f.writes = append(f.writes, w)
	f.nextID++
	return 1000 + f.nextID, nil
}

func (f *fakeStore) LoadBandRows(context.Context, int, []string, string) ([]store.BandRow, error) {
	return nil, nil
}

func (f *fakeStore) UpsertDerived(context.Context, models.DataRow, int, bool) error {
	return nil
}

// fakeProvider answers every date as available and returns one value per
// requested date.
type fakeProvider struct {
	area      float64
	retrieves int
}

func (f *fakeProvider) Area(context.Context, models.AOI) (float64, error) {
	if f.area == 0 {
		return 1e6, nil
	}
	return f.area, nil
}

func (f *fakeProvider) AvailableDates(_ context.Context, _ int, _ models.AOI, dates []time.Time) ([]time.Time, error) {
	return dates, nil
}

func (f *fakeProvider) Retrieve(_ context.Context, req provider.ComputeRequest) (models.RetrievalResult, error) {
	f.retrieves++
	result := make(models.RetrievalResult, len(req.Dates))
	for _, d := range req.Dates {
		result[models.FormatDate(d)] = models.DayResult{
			Time:   "10:30",
			Values: map[string]float64{"sur_refl_b01_mean": 0.05},
		}
	}
	return result, nil
}

type fakeEstimator struct {
	ran []int
}

func (f *fakeEstimator) Run(_ context.Context, d models.Demand, _ map[string]int) error {
	f.ran = append(f.ran, d.ID)
	return nil
}

func demandRow(id int) models.DemandRow {
	return models.DemandRow{
		ID:          id,
		Status:      models.StatusActive,
		StationID:   10,
		ProductID:   101,
		ProcAlgoID:  0,
		EstimAlgoID: 0,
		ReducerID:   2,
		StartDate:   strPtr("2020-01-01"),
		EndDate:     strPtr("2020-01-03"),
		AoiMode:     models.AoiRadius,
		AoiRadius:   intPtr(500),
		StationCode: "STATION1",
		StationLat:  -15.78,
		StationLong: -47.81,
	}
}

func newEngine(fs *fakeStore, fp *fakeProvider, est Estimator, buf *bytes.Buffer, cfg Config) *Engine {
	rep := report.New(buf)
	exec := executor.New(fp, rep, 0)
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return date("2020-06-01") }
	}
	if cfg.MaxProcPixels == 0 {
		cfg.MaxProcPixels = 25000
	}
	return New(fs, fp, exec, est, rep, cfg)
}

func TestRunUpdateEndToEnd(t *testing.T) {
	fs := &fakeStore{demands: []models.DemandRow{demandRow(1)}}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	// Three-day span, everything available and fresh: three date writes.
	if len(fs.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(fs.writes))
	}
	for _, w := range fs.writes {
		if w.DemandID != 1 || len(w.Rows) != 1 {
			t.Errorf("write = %+v", w)
		}
	}
	if !strings.Contains(buf.String(), "Saved the records") {
		t.Errorf("log missing save result: %s", buf.String())
	}
}

func TestRunUpdateSkipsStoredDates(t *testing.T) {
	fs := &fakeStore{
		demands: []models.DemandRow{demandRow(1)},
		records: []models.TimeSeriesRecord{
			{ID: 11, DemandID: 1, Date: date("2020-01-01")},
			{ID: 12, DemandID: 1, Date: date("2020-01-02")},
			{ID: 13, DemandID: 1, Date: date("2020-01-03")},
		},
	}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 0 {
		t.Errorf("writes = %d, want 0 when the series is current", len(fs.writes))
	}
	if fp.retrieves != 0 {
		t.Errorf("retrieves = %d, want 0", fp.retrieves)
	}
	if !strings.Contains(buf.String(), "up to date") {
		t.Errorf("log missing up-to-date result: %s", buf.String())
	}
}

func TestRunOverwriteRefetchesEverything(t *testing.T) {
	fs := &fakeStore{
		demands: []models.DemandRow{demandRow(1)},
		records: []models.TimeSeriesRecord{
			{ID: 11, DemandID: 1, Date: date("2020-01-02")},
		},
	}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeOverwrite); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 3 {
		t.Fatalf("writes = %d, want the full span", len(fs.writes))
	}
	var reused *models.DateWrite
	for i := range fs.writes {
		if fs.writes[i].SeriesID == 11 {
			reused = &fs.writes[i]
		}
	}
	if reused == nil {
		t.Fatal("the stored record was not reused")
	}
	if !reused.DeleteData {
		t.Error("overwrite did not clear the existing data rows")
	}
}

func TestRunStatusOverride(t *testing.T) {
	row := demandRow(1)
	row.Status = int(models.ModeOverwrite)
	fs := &fakeStore{demands: []models.DemandRow{row}}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	if len(fs.resets) != 1 || fs.resets[0] != 1 {
		t.Errorf("resets = %v, want [1]", fs.resets)
	}
	// The override forced overwrite mode, so the span was retrieved.
	if len(fs.writes) != 3 {
		t.Errorf("writes = %d, want 3", len(fs.writes))
	}
}

func TestRunEstimationMode(t *testing.T) {
	row := demandRow(1)
	row.EstimAlgoID = 1
	fs := &fakeStore{demands: []models.DemandRow{row}}
	fp := &fakeProvider{}
	est := &fakeEstimator{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, est, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeEstimation); err != nil {
		t.Fatal(err)
	}
	if len(est.ran) != 1 || est.ran[0] != 1 {
		t.Errorf("estimator ran for %v, want [1]", est.ran)
	}
	if fp.retrieves != 0 {
		t.Errorf("retrieves = %d, want 0 in estimation mode", fp.retrieves)
	}
}

func TestRunDryRunSkipsWrites(t *testing.T) {
	fs := &fakeStore{demands: []models.DemandRow{demandRow(1)}}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{DryRun: true})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	if fp.retrieves == 0 {
		t.Error("dry run should still retrieve")
	}
	if len(fs.writes) != 0 {
		t.Errorf("writes = %d, want 0 in dry run", len(fs.writes))
	}
}

func TestRunNoValidDemands(t *testing.T) {
	row := demandRow(1)
	row.ProductID = 999
	fs := &fakeStore{demands: []models.DemandRow{row}}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	if !e.rep.Failed() {
		t.Error("run with no valid demands should raise the error flag")
	}
	if !strings.Contains(buf.String(), "No valid demand records found") {
		t.Errorf("log missing warning: %s", buf.String())
	}
}

func TestRunGroupsSharedRetrievalKey(t *testing.T) {
	a := demandRow(1)
	b := demandRow(2)
	b.EstimAlgoID = 1 // same retrieval key, different estimation
	fs := &fakeStore{demands: []models.DemandRow{a, b}}
	fp := &fakeProvider{}
	var buf bytes.Buffer
	e := newEngine(fs, fp, nil, &buf, Config{})

	if err := e.Run(context.Background(), models.ModeUpdate); err != nil {
		t.Fatal(err)
	}
	// One batch fetch serves both members; writes happen per member.
	if fp.retrieves != 1 {
		t.Errorf("retrieves = %d, want 1", fp.retrieves)
	}
	if len(fs.writes) != 6 {
		t.Errorf("writes = %d, want 3 per member", len(fs.writes))
	}
}
