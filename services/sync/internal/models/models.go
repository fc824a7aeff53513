package models

import "time"

// DateLayout is the calendar-date format used across the store, the
// provider wire format and the run log.
const DateLayout = "2006-01-02"

// RunMode selects how a run (or a single demand group, via a status
// override) treats dates already present in the store.
type RunMode int

const (
	// ModeUpdate retrieves only dates with no TimeSeries record yet.
	ModeUpdate RunMode = 3
	// ModeOverwrite re-retrieves the full span and replaces stored values.
	ModeOverwrite RunMode = 4
	// ModeEstimation recomputes a derived variable from stored base bands
	// without querying the provider.
	ModeEstimation RunMode = 5
)

func (m RunMode) String() string {
	switch m {
	case ModeUpdate:
		return "update"
	case ModeOverwrite:
		return "overwrite"
	case ModeEstimation:
		return "estimation"
	}
	return "unknown"
}

// Demand status values as stored. Values above StatusActive are transient
// per-demand run-mode overrides, reset to StatusActive before retrieval.
const (
	StatusSuspended = 0
	StatusActive    = 1
)

// AOI modes.
const (
	AoiRadius  = 0
	AoiPolygon = 1
)

// DemandRow is a raw demand record joined with its station, as loaded
// from the store. Nullable columns are pointers.
type DemandRow struct {
	ID          int
	Status      int
	StationID   int
	ProductID   int
	ProcAlgoID  int
	EstimAlgoID int
	ReducerID   int
	StartDate   *string
	EndDate     *string
	AoiMode     int
	AoiRadius   *int
	AoiFile     *string

	StationCode string
	StationName string
	StationLat  float64
	StationLong float64
}

// Demand is a validated demand with every field resolved.
type Demand struct {
	ID          int
	Status      int
	StationID   int
	StationCode string
	StationLat  float64
	StationLong float64
	ProductID   int
	ProcAlgoID  int
	EstimAlgoID int
	ReducerID   int
	StartDate   time.Time
	EndDate     time.Time
	AoiMode     int
	AoiRadius   int
	AoiFile     string
}

// RetrievalKey identifies the provider-facing part of a demand. Demands
// sharing a key are retrieved together; only their estimation differs.
type RetrievalKey struct {
	StationID  int
	ProductID  int
	ProcAlgoID int
	ReducerID  int
	AoiMode    int
	AoiRadius  int
	AoiFile    string
}

// Key returns the demand's retrieval key.
func (d Demand) Key() RetrievalKey {
	return RetrievalKey{
		StationID:  d.StationID,
		ProductID:  d.ProductID,
		ProcAlgoID: d.ProcAlgoID,
		ReducerID:  d.ReducerID,
		AoiMode:    d.AoiMode,
		AoiRadius:  d.AoiRadius,
		AoiFile:    d.AoiFile,
	}
}

// DemandGroup is a set of demands sharing a retrieval key, in catalog order.
type DemandGroup struct {
	Key     RetrievalKey
	Members []Demand
	// Mode is the effective run mode for this group: the process mode, or
	// a member's transient status override.
	Mode RunMode
}

// IDs returns the member demand ids in catalog order.
func (g DemandGroup) IDs() []int {
	ids := make([]int, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

// AOI is the resolved area of interest sent to the provider.
type AOI struct {
	Mode   int
	Lat    float64
	Long   float64
	Radius int
	// Polygons holds the outer rings of a polygon-mode AOI as
	// [ring][vertex][long, lat].
	Polygons [][][2]float64
}

// TimeSeriesRecord mirrors one row of the time_series table.
type TimeSeriesRecord struct {
	ID       int
	DemandID int
	Date     time.Time
}

// HistoryBounds are a member's earliest and latest stored dates. When the
// member has no history both default to the planning span start.
type HistoryBounds struct {
	Earliest   time.Time
	Latest     time.Time
	HasHistory bool
}

// Batch is a chronological, contiguous slice of the pending date list.
// Available holds the subset backed by source imagery; the remainder is
// carried only for gap stamping.
type Batch struct {
	Dates     []time.Time
	Available []time.Time
}

// First returns the batch's earliest date.
func (b Batch) First() time.Time { return b.Dates[0] }

// Last returns the batch's latest date.
func (b Batch) Last() time.Time { return b.Dates[len(b.Dates)-1] }

// DataRow is one value to persist for a time-series record.
type DataRow struct {
	VariableID  int
	StatisticID int
	Time        string
	Value       float64
}

// DateWrite is the atomic write set for one (demand, date): it either
// creates a time-series record (SeriesID zero) or reuses an existing one,
// optionally clears its data rows first, and inserts the new values. The
// whole set commits in a single transaction.
type DateWrite struct {
	DemandID   int
	Date       time.Time
	SeriesID   int
	DeleteData bool
	Rows       []DataRow
}

// DayResult is the provider's output for a single date: an optional
// acquisition time plus variable name → value.
type DayResult struct {
	Time   string
	Values map[string]float64
}

// RetrievalResult maps YYYY-MM-DD date strings to per-day results. An
// empty (non-nil) map is a successful retrieval with no qualifying dates.
type RetrievalResult map[string]DayResult

// Day returns the result for a date, if present.
func (r RetrievalResult) Day(d time.Time) (DayResult, bool) {
	day, ok := r[d.Format(DateLayout)]
	return day, ok
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
