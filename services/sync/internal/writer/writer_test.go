package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
)

// fakeStore records applied writes and hands out catalog ids.
type fakeStore struct {
	nextVarID    int
	nextStatID   int
	nextSeriesID int
	writes       []models.DateWrite
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextVarID: 100, nextStatID: 100, nextSeriesID: 1000}
}

func (f *fakeStore) EnsureVariable(context.Context, string) (int, error) {
	f.nextVarID++
	return f.nextVarID, nil
}

func (f *fakeStore) EnsureStatistic(context.Context, string) (int, error) {
	f.nextStatID++
	return f.nextStatID, nil
}

func (f *fakeStore) ApplyDateWrite(_ context.Context, w models.DateWrite) (int, error) {
	f.writes = append(f.writes, w)
	if w.SeriesID != 0 {
		return w.SeriesID, nil
	}
	f.nextSeriesID++
	return f.nextSeriesID, nil
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func batchOf(ss ...string) models.Batch {
	b := models.Batch{}
	for _, s := range ss {
		d := date(s)
		b.Dates = append(b.Dates, d)
		b.Available = append(b.Available, d)
	}
	return b
}

func group(memberIDs ...int) models.DemandGroup {
	g := models.DemandGroup{Mode: models.ModeUpdate}
	for _, id := range memberIDs {
		g.Members = append(g.Members, models.Demand{ID: id, ProductID: 101, ReducerID: 2})
	}
	return g
}

func newWriter(store Store, series map[int]map[string]int, buf *bytes.Buffer) *Writer {
	vars := map[string]int{"sur_refl_b01": 1}
	stats := map[string]int{"none": 0, "median": 1, "mean": 2}
	if series == nil {
		series = make(map[int]map[string]int)
	}
	return New(store, report.New(buf), vars, stats, series)
}

func TestWriteBatchCreatesRecords(t *testing.T) {
	fs := newFakeStore()
	var buf bytes.Buffer
	w := newWriter(fs, nil, &buf)

	result := models.RetrievalResult{
		"2020-01-01": {Time: "10:30", Values: map[string]float64{"sur_refl_b01_mean": 0.05}},
	}
	g := group(1)
	bounds := map[int]models.HistoryBounds{1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01")}}

	if err := w.WriteBatch(context.Background(), g, batchOf("2020-01-01"), bounds, result); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(fs.writes))
	}
	dw := fs.writes[0]
	if dw.SeriesID != 0 || dw.DeleteData {
		t.Errorf("write = %+v, want a fresh record with no delete", dw)
	}
	if len(dw.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(dw.Rows))
	}
	row := dw.Rows[0]
	if row.VariableID != 1 || row.StatisticID != 2 || row.Time != "10:30" || row.Value != 0.05 {
		t.Errorf("row = %+v", row)
	}
	if !strings.Contains(buf.String(), "Saved the records") {
		t.Errorf("log missing save result: %s", buf.String())
	}
}

func TestWriteBatchReusesExistingRecord(t *testing.T) {
	fs := newFakeStore()
	series := map[int]map[string]int{1: {"2020-01-01": 42}}
	var buf bytes.Buffer
	w := newWriter(fs, series, &buf)

	result := models.RetrievalResult{
		"2020-01-01": {Values: map[string]float64{"sur_refl_b01_mean": 0.07}},
	}
	bounds := map[int]models.HistoryBounds{1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01"), HasHistory: true}}

	t.Run("update appends without deleting", func(t *testing.T) {
		g := group(1)
		if err := w.WriteBatch(context.Background(), g, batchOf("2020-01-01"), bounds, result); err != nil {
			t.Fatal(err)
		}
		if len(fs.writes) != 1 {
			t.Fatalf("writes = %d, want 1", len(fs.writes))
		}
		if fs.writes[0].SeriesID != 42 || fs.writes[0].DeleteData {
			t.Errorf("write = %+v, want series 42 without delete", fs.writes[0])
		}
	})

	t.Run("overwrite deletes first", func(t *testing.T) {
		fs.writes = nil
		g := group(1)
		g.Mode = models.ModeOverwrite
		if err := w.WriteBatch(context.Background(), g, batchOf("2020-01-01"), bounds, result); err != nil {
			t.Fatal(err)
		}
		if len(fs.writes) != 1 || !fs.writes[0].DeleteData {
			t.Fatalf("writes = %+v, want one delete-then-insert", fs.writes)
		}
	})
}

func TestWriteBatchStampsInteriorGaps(t *testing.T) {
	fs := newFakeStore()
	series := map[int]map[string]int{1: {"2020-01-01": 42, "2020-01-05": 43}}
	var buf bytes.Buffer
	w := newWriter(fs, series, &buf)

	// Empty retrieval; dates 02..04 sit strictly inside the member's
	// observed range and must be stamped so they are not re-queried.
	bounds := map[int]models.HistoryBounds{
		1: {Earliest: date("2020-01-01"), Latest: date("2020-01-05"), HasHistory: true},
	}
	batch := batchOf("2020-01-02", "2020-01-03", "2020-01-04")

	if err := w.WriteBatch(context.Background(), group(1), batch, bounds, models.RetrievalResult{}); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 3 {
		t.Fatalf("writes = %d, want 3 gap stubs", len(fs.writes))
	}
	for _, dw := range fs.writes {
		if dw.SeriesID != 0 || len(dw.Rows) != 0 {
			t.Errorf("gap stub = %+v, want a bare new record", dw)
		}
	}
	if !strings.Contains(buf.String(), "fill the date gaps") {
		t.Errorf("log missing gap-fill note: %s", buf.String())
	}
	// The cache must track the new records.
	if len(series[1]) != 5 {
		t.Errorf("series cache has %d entries, want 5", len(series[1]))
	}
}

func TestWriteBatchLeavesFrontierOpen(t *testing.T) {
	fs := newFakeStore()
	series := map[int]map[string]int{1: {"2020-01-01": 42}}
	var buf bytes.Buffer
	w := newWriter(fs, series, &buf)

	// Empty retrieval beyond the member's latest stored date: the dates
	// stay open because imagery may appear later.
	bounds := map[int]models.HistoryBounds{
		1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01"), HasHistory: true},
	}
	batch := batchOf("2020-02-01", "2020-02-02")

	if err := w.WriteBatch(context.Background(), group(1), batch, bounds, models.RetrievalResult{}); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 0 {
		t.Fatalf("writes = %+v, want none", fs.writes)
	}
	if !strings.Contains(buf.String(), "no available data") {
		t.Errorf("log missing no-data result: %s", buf.String())
	}
}

func TestWriteBatchSkipsNoHistoryMemberOnEmptyResult(t *testing.T) {
	fs := newFakeStore()
	var buf bytes.Buffer
	w := newWriter(fs, nil, &buf)

	bounds := map[int]models.HistoryBounds{1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01")}}
	if err := w.WriteBatch(context.Background(), group(1), batchOf("2020-01-01", "2020-01-02"), bounds, models.RetrievalResult{}); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 0 {
		t.Errorf("writes = %+v, want none for a member with no history", fs.writes)
	}
}

func TestWriteBatchResolvesNewCatalogEntries(t *testing.T) {
	fs := newFakeStore()
	var buf bytes.Buffer
	w := newWriter(fs, nil, &buf)

	result := models.RetrievalResult{
		"2020-01-01": {Values: map[string]float64{
			"sur_refl_b02_mean": 0.3,
			"spm":               12.5,
		}},
	}
	g := group(1)
	g.Members[0].EstimAlgoID = 1
	bounds := map[int]models.HistoryBounds{1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01")}}

	if err := w.WriteBatch(context.Background(), g, batchOf("2020-01-01"), bounds, result); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(fs.writes))
	}
	rows := fs.writes[0].Rows
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// spm is a derived name: stored whole under statistic "none".
	var spmRow *models.DataRow
	for i := range rows {
		if rows[i].Value == 12.5 {
			spmRow = &rows[i]
		}
	}
	if spmRow == nil {
		t.Fatal("spm row missing")
	}
	if spmRow.StatisticID != 0 {
		t.Errorf("spm statistic id = %d, want 0 (none)", spmRow.StatisticID)
	}
	if !strings.Contains(buf.String(), "added to the catalog") {
		t.Errorf("log missing catalog additions: %s", buf.String())
	}
}

func TestWriteBatchMultipleMembersShareResult(t *testing.T) {
	fs := newFakeStore()
	var buf bytes.Buffer
	w := newWriter(fs, nil, &buf)

	result := models.RetrievalResult{
		"2020-01-01": {Values: map[string]float64{"sur_refl_b01_mean": 0.05}},
	}
	g := group(1, 2)
	bounds := map[int]models.HistoryBounds{
		1: {Earliest: date("2020-01-01"), Latest: date("2020-01-01")},
		2: {Earliest: date("2020-01-01"), Latest: date("2020-01-01")},
	}

	if err := w.WriteBatch(context.Background(), g, batchOf("2020-01-01"), bounds, result); err != nil {
		t.Fatal(err)
	}
	if len(fs.writes) != 2 {
		t.Fatalf("writes = %d, want one per member", len(fs.writes))
	}
	if fs.writes[0].DemandID == fs.writes[1].DemandID {
		t.Error("both writes target the same demand")
	}
}
