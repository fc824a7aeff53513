// Package kml extracts polygon outer rings from simple KML files, the
// format operators use to sketch a station's area of interest.
package kml

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type polygon struct {
	Outer string `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

// PolygonsFromFile reads every polygon in a KML file and returns their
// rings as [ring][vertex][long, lat]. The outer boundary is preferred;
// the inner one is used only when no outer ring is present.
func PolygonsFromFile(path string) ([][][2]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) ([][][2]float64, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	var rings [][][2]float64
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Polygon" {
			continue
		}
		var p polygon
		if err := decoder.DecodeElement(&p, &start); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		coords := p.Outer
		if strings.TrimSpace(coords) == "" {
			coords = p.Inner
		}
		ring, err := parseCoordinates(coords)
		if err != nil {
			return nil, err
		}
		if len(ring) > 0 {
			rings = append(rings, ring)
		}
	}
	return rings, nil
}

// parseCoordinates reads the KML coordinate encoding: whitespace-separated
// tuples of long,lat[,alt].
func parseCoordinates(s string) ([][2]float64, error) {
	var ring [][2]float64
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed coordinate tuple %q", tuple)
		}
		long, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q", parts[1])
		}
		ring = append(ring, [2]float64{long, lat})
	}
	return ring, nil
}
