// Package report writes structured run-log entries and tracks the
// process-wide error flag. Every log line carries a timestamp, an entry
// kind and the demand identifier it concerns.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Entry kinds, mirrored into the log as the "kind" field.
const (
	KindInfo      = "Info"
	KindWarning   = "Warning"
	KindError     = "Error"
	KindResult    = "Result"
	KindBenchmark = "Benchmark"
)

// Reporter records structured outcomes per demand and accumulates the
// run's error flag. It is not safe for concurrent use; the engine is
// single-threaded.
type Reporter struct {
	log      zerolog.Logger
	anyError bool
}

// New builds a Reporter writing JSON lines to w.
func New(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Info records an informational entry.
func (r *Reporter) Info(id, msg string) {
	r.log.Info().Str("kind", KindInfo).Str("demand", id).Msg(msg)
}

// Warning records a non-fatal anomaly.
func (r *Reporter) Warning(id, msg string) {
	r.log.Warn().Str("kind", KindWarning).Str("demand", id).Msg(msg)
}

// Error records a recoverable failure and raises the run error flag.
func (r *Reporter) Error(id, msg string) {
	r.anyError = true
	r.log.Error().Str("kind", KindError).Str("demand", id).Msg(msg)
}

// Result records a per-demand outcome.
func (r *Reporter) Result(id, msg string) {
	r.log.Info().Str("kind", KindResult).Str("demand", id).Msg(msg)
}

// Benchmark records a run milestone.
func (r *Reporter) Benchmark(msg string) {
	r.log.Info().Str("kind", KindBenchmark).Str("demand", "-").Msg(msg)
}

// SetError raises the error flag without logging.
func (r *Reporter) SetError() { r.anyError = true }

// Failed reports whether any error was recorded during the run.
func (r *Reporter) Failed() bool { return r.anyError }

// DemandID renders a single demand identifier.
func DemandID(id int) string { return fmt.Sprintf("DEMANDID %d", id) }

// GroupID renders a demand-group identifier.
func GroupID(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "DEMANDID [" + strings.Join(parts, " ") + "]"
}
