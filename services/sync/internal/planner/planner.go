// Package planner computes, per demand group, the calendar span to
// consider, the dates still requiring retrieval, each member's observed
// history bounds, and the provider-capacity-bounded batches.
package planner

import (
	"math"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

// Span determines the group's candidate date range: start is the latest
// member start date, clamped to the product's earliest availability; end
// is the latest member end date.
func Span(g models.DemandGroup, productStart time.Time) (start, end time.Time) {
	for i, m := range g.Members {
		if i == 0 || m.StartDate.After(start) {
			start = m.StartDate
		}
		if i == 0 || m.EndDate.After(end) {
			end = m.EndDate
		}
	}
	if !productStart.IsZero() && productStart.After(start) {
		start = productStart
	}
	return start, end
}

// CalendarDates returns every date in [start, end], ascending.
func CalendarDates(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, 0, n)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Pending filters the span dates down to those requiring retrieval.
// Update mode drops any date already present in the time series of any
// group member; overwrite mode keeps the whole span.
func Pending(span []time.Time, mode models.RunMode, existing map[int]map[string]int, memberIDs []int) []time.Time {
	if mode != models.ModeUpdate {
		return span
	}
	pending := make([]time.Time, 0, len(span))
	for _, d := range span {
		key := models.FormatDate(d)
		seen := false
		for _, id := range memberIDs {
			if _, ok := existing[id][key]; ok {
				seen = true
				break
			}
		}
		if !seen {
			pending = append(pending, d)
		}
	}
	return pending
}

// Bounds computes a member's earliest and latest stored dates. A member
// with no history reports the span start for both, with HasHistory false.
func Bounds(existing map[string]int, spanStart time.Time) models.HistoryBounds {
	b := models.HistoryBounds{Earliest: spanStart, Latest: spanStart}
	for key := range existing {
		d, err := models.ParseDate(key)
		if err != nil {
			continue
		}
		if !b.HasHistory {
			b.Earliest, b.Latest = d, d
			b.HasHistory = true
			continue
		}
		if d.Before(b.Earliest) {
			b.Earliest = d
		}
		if d.After(b.Latest) {
			b.Latest = d
		}
	}
	return b
}

// EffectiveBatchSize bounds the number of imagery-backed dates per batch:
// min(ceil(maxProcPixels / aoiPixels), algoMaxImages).
func EffectiveBatchSize(aoiPixels float64, maxProcPixels, algoMaxImages int) int {
	if aoiPixels <= 0 {
		return algoMaxImages
	}
	capacity := int(math.Ceil(float64(maxProcPixels) / aoiPixels))
	if capacity < 1 {
		capacity = 1
	}
	if algoMaxImages < capacity {
		return algoMaxImages
	}
	return capacity
}

// PixelCount approximates the number of product pixels covering the AOI.
func PixelCount(areaSqMeters, resolutionMeters float64) float64 {
	if resolutionMeters <= 0 {
		return 0
	}
	return areaSqMeters / (resolutionMeters * resolutionMeters)
}

// Batches partitions the pending dates into chronological, contiguous,
// non-overlapping batches of at most size imagery-backed dates each.
// Dates without coverage ride along for gap stamping but do not count
// against the cap.
func Batches(pending []time.Time, available map[string]bool, size int) []models.Batch {
	if size < 1 {
		size = 1
	}
	availCount := 0
	for _, d := range pending {
		if available[models.FormatDate(d)] {
			availCount++
		}
	}
	if availCount == 0 {
		return nil
	}

	batches := make([]models.Batch, 0, (availCount+size-1)/size)
	i := 0
	for i < len(pending) {
		var b models.Batch
		for i < len(pending) && len(b.Available) < size {
			d := pending[i]
			b.Dates = append(b.Dates, d)
			if available[models.FormatDate(d)] {
				b.Available = append(b.Available, d)
			}
			i++
		}
		if len(b.Available) == 0 {
			// Trailing dates with no coverage attach to the previous batch.
			if len(batches) > 0 {
				last := &batches[len(batches)-1]
				last.Dates = append(last.Dates, b.Dates...)
			}
			break
		}
		batches = append(batches, b)
	}
	return batches
}
