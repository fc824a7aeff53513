// Package catalog validates raw demand rows against the closed product and
// algorithm sets, resolves their AOI and date fields, and groups the
// cleaned demands by retrieval key.
package catalog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
	"github.com/lucasuchoa98/geedar/services/sync/internal/report"
)

// ValidateOptions parameterizes demand validation.
type ValidateOptions struct {
	// KMLDir is the directory searched for station polygon files.
	KMLDir string
	// Today resolves "auto" end dates.
	Today time.Time
}

// Validate checks every demand row, resolving AOI and date fields.
// Invalid rows are reported and excluded; the run continues with the rest.
func Validate(rows []models.DemandRow, opts ValidateOptions, rep *report.Reporter) []models.Demand {
	demands := make([]models.Demand, 0, len(rows))
	for _, row := range rows {
		d, ok := validateRow(row, opts, rep)
		if ok {
			demands = append(demands, d)
		}
	}
	return demands
}

func validateRow(row models.DemandRow, opts ValidateOptions, rep *report.Reporter) (models.Demand, bool) {
	id := report.DemandID(row.ID)
	valid := true
	fail := func(msg string) {
		valid = false
		rep.Error(id, msg)
	}

	d := models.Demand{
		ID:          row.ID,
		Status:      row.Status,
		StationID:   row.StationID,
		StationCode: strings.TrimSpace(row.StationCode),
		StationLat:  row.StationLat,
		StationLong: row.StationLong,
		ProductID:   row.ProductID,
		ProcAlgoID:  row.ProcAlgoID,
		EstimAlgoID: row.EstimAlgoID,
		ReducerID:   row.ReducerID,
		AoiMode:     row.AoiMode,
	}

	product, productOK := Products[row.ProductID]
	if !productOK {
		fail(fmt.Sprintf("Unrecognized product ID: %d.", row.ProductID))
	}
	if _, ok := ProcAlgos[row.ProcAlgoID]; !ok {
		fail(fmt.Sprintf("Unrecognized image processing algorithm ID: %d.", row.ProcAlgoID))
	}
	if _, ok := EstimAlgos[row.EstimAlgoID]; !ok {
		fail(fmt.Sprintf("Unrecognized estimation algorithm ID: %d.", row.EstimAlgoID))
	}
	if _, ok := Reducers[row.ReducerID]; !ok {
		fail(fmt.Sprintf("Unrecognized reducer index: %d.", row.ReducerID))
	}

	switch row.AoiMode {
	case models.AoiRadius:
		// Radius mode: the file field is not authoritative and is cleared.
		d.AoiFile = ""
		if row.AoiRadius == nil {
			fail("The AOI radius should hold an integer value, in meters, but it was empty.")
		} else {
			d.AoiRadius = *row.AoiRadius
			if d.AoiRadius <= 0 {
				fail("The AOI radius should be greater than zero.")
			}
		}
		if math.IsNaN(row.StationLat) {
			fail("Latitude value was 'NaN'.")
		}
		if math.IsNaN(row.StationLong) {
			fail("Longitude value was 'NaN'.")
		}
	case models.AoiPolygon:
		d.AoiRadius = 0
		file := ""
		if row.AoiFile != nil {
			file = strings.TrimSpace(*row.AoiFile)
		}
		if strings.EqualFold(file, "auto") || file == "" {
			if d.StationCode == "" {
				fail("The station code was empty. The polygon file could not be located automatically.")
				file = ""
			} else {
				file = filepath.Join(opts.KMLDir, d.StationCode+".kml")
			}
		}
		if file != "" {
			resolved, ok := resolvePolygonFile(file, d.StationCode, opts.KMLDir, id, rep)
			if !ok {
				valid = false
			}
			d.AoiFile = resolved
		}
	default:
		fail(fmt.Sprintf("Unrecognized AOI mode index: %d.", row.AoiMode))
	}

	start := trimmedOrEmpty(row.StartDate)
	if strings.EqualFold(start, "auto") || start == "" {
		if productOK {
			start = product.StartDate
		}
	}
	if productOK {
		t, err := models.ParseDate(start)
		if err != nil {
			fail(fmt.Sprintf("The demand start date was not a string in the format YYYY-MM-DD. The value was: '%s'.", start))
		} else {
			d.StartDate = t
		}
	}

	end := trimmedOrEmpty(row.EndDate)
	if strings.EqualFold(end, "auto") || end == "" {
		d.EndDate = opts.Today.UTC().Truncate(24 * time.Hour)
	} else {
		t, err := models.ParseDate(end)
		if err != nil {
			fail(fmt.Sprintf("The demand end date was not a string in the format YYYY-MM-DD. The value was: '%s'.", end))
		} else {
			d.EndDate = t
		}
	}

	return d, valid
}

// resolvePolygonFile checks that the polygon file exists, falling back to a
// "<code> - <name>.kml" directory scan when it does not.
func resolvePolygonFile(file, stationCode, kmlDir, id string, rep *report.Reporter) (string, bool) {
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		return file, true
	}
	if stationCode != "" {
		prefix := stationCode + " - "
		entries, err := os.ReadDir(kmlDir)
		if err == nil {
			var candidates []string
			for _, e := range entries {
				name := e.Name()
				if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".kml") {
					candidates = append(candidates, name)
				}
			}
			if len(candidates) > 0 {
				sort.Strings(candidates)
				if len(candidates) > 1 {
					rep.Warning(id, fmt.Sprintf("More than one polygon file was found for the station %s. The first was used.", stationCode))
				}
				return filepath.Join(kmlDir, candidates[0]), true
			}
		}
	}
	rep.Error(id, fmt.Sprintf("The file %s was not found.", file))
	return file, false
}

func trimmedOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// GroupDemands groups validated demands by retrieval key, in catalog
// order. A transient status override (3, 4 or 5) on the visited demand
// sets the group's run mode for this run only; estimation-only demands
// are never merged with retrieval groups.
func GroupDemands(demands []models.Demand, processMode models.RunMode) []models.DemandGroup {
	processed := make([]bool, len(demands))
	groups := make([]models.DemandGroup, 0, len(demands))
	for i, d := range demands {
		if processed[i] {
			continue
		}
		processed[i] = true

		mode := processMode
		switch models.RunMode(d.Status) {
		case models.ModeUpdate, models.ModeOverwrite, models.ModeEstimation:
			mode = models.RunMode(d.Status)
		}

		g := models.DemandGroup{Key: d.Key(), Members: []models.Demand{d}, Mode: mode}
		if mode != models.ModeEstimation {
			for j := i + 1; j < len(demands); j++ {
				if !processed[j] && demands[j].Key() == g.Key {
					processed[j] = true
					g.Members = append(g.Members, demands[j])
				}
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// ResolveAOI builds the provider-facing AOI for a demand. loadPolygon
// reads polygon rings from a file and is only consulted in polygon mode.
func ResolveAOI(d models.Demand, loadPolygon func(string) ([][][2]float64, error)) (models.AOI, error) {
	switch d.AoiMode {
	case models.AoiRadius:
		return models.AOI{Mode: models.AoiRadius, Lat: d.StationLat, Long: d.StationLong, Radius: d.AoiRadius}, nil
	case models.AoiPolygon:
		rings, err := loadPolygon(d.AoiFile)
		if err != nil {
			return models.AOI{}, fmt.Errorf("read polygon file %s: %w", d.AoiFile, err)
		}
		if len(rings) == 0 {
			return models.AOI{}, fmt.Errorf("no coordinates could be extracted from %s", d.AoiFile)
		}
		return models.AOI{Mode: models.AoiPolygon, Polygons: rings}, nil
	}
	return models.AOI{}, fmt.Errorf("unrecognized AOI mode %d", d.AoiMode)
}

// DerivedVariables returns the set of derived parameter names produced by
// the group's estimation algorithms. The writer stores these names under
// the statistic "none" even when they contain underscores.
func DerivedVariables(g models.DemandGroup) map[string]bool {
	derived := make(map[string]bool)
	for _, m := range g.Members {
		if spec, ok := EstimAlgos[m.EstimAlgoID]; ok && spec.ParamName != "" {
			derived[spec.ParamName] = true
		}
	}
	return derived
}
