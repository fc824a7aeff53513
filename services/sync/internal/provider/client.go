package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lucasuchoa98/geedar/services/sync/internal/models"
)

// Client talks JSON over HTTP to the compute provider gateway.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a provider client for the given base URL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type aoiPayload struct {
	Mode     int            `json:"mode"`
	Lat      float64        `json:"lat,omitempty"`
	Long     float64        `json:"long,omitempty"`
	Radius   int            `json:"radius,omitempty"`
	Polygons [][][2]float64 `json:"polygons,omitempty"`
}

func encodeAOI(aoi models.AOI) aoiPayload {
	return aoiPayload{Mode: aoi.Mode, Lat: aoi.Lat, Long: aoi.Long, Radius: aoi.Radius, Polygons: aoi.Polygons}
}

type areaResponse struct {
	Area float64 `json:"area_m2"`
}

// Area implements Provider.
func (c *Client) Area(ctx context.Context, aoi models.AOI) (float64, error) {
	var resp areaResponse
	if err := c.post(ctx, "/v1/area", map[string]any{"aoi": encodeAOI(aoi)}, &resp); err != nil {
		return 0, err
	}
	return resp.Area, nil
}

type availableResponse struct {
	Dates []string `json:"dates"`
}

// AvailableDates implements Provider.
func (c *Client) AvailableDates(ctx context.Context, productID int, aoi models.AOI, dates []time.Time) ([]time.Time, error) {
	body := map[string]any{
		"aoi":        encodeAOI(aoi),
		"product_id": productID,
		"dates":      formatDates(dates),
	}
	var resp availableResponse
	if err := c.post(ctx, "/v1/available-dates", body, &resp); err != nil {
		return nil, err
	}
	available := make([]time.Time, 0, len(resp.Dates))
	for _, s := range resp.Dates {
		d, err := models.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("malformed date in provider response: %q", s)
		}
		available = append(available, d)
	}
	return available, nil
}

type computeResponse struct {
	Days map[string]map[string]json.Number `json:"days"`
}

// Retrieve implements Provider. The acquisition time rides in the value
// map under "img_time" and is split out into the day result.
func (c *Client) Retrieve(ctx context.Context, req ComputeRequest) (models.RetrievalResult, error) {
	body := map[string]any{
		"aoi":            encodeAOI(req.AOI),
		"product_id":     req.ProductID,
		"proc_algo_id":   req.ProcAlgoID,
		"estim_algo_ids": req.EstimAlgoIDs,
		"reducer_id":     req.ReducerID,
		"dates":          formatDates(req.Dates),
		"tile_scale":     req.TileScale,
	}
	var resp computeResponse
	if err := c.post(ctx, "/v1/compute", body, &resp); err != nil {
		return nil, err
	}

	result := make(models.RetrievalResult, len(resp.Days))
	for date, raw := range resp.Days {
		day := models.DayResult{Time: "00:00", Values: make(map[string]float64, len(raw))}
		for name, num := range raw {
			if name == "img_time" {
				day.Time = num.String()
				continue
			}
			v, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("malformed value for %s on %s: %w", name, date, err)
			}
			day.Values[name] = v
		}
		result[date] = day
	}
	return result, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			// Client-side timeouts and connection drops count as timeouts
			// for the retry policy.
			return &Failure{Kind: FailTimeout, Message: err.Error()}
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return classify(resp.StatusCode, envelope)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// classify maps the provider's failure signals onto the retry taxonomy.
func classify(status int, envelope errorEnvelope) error {
	code := envelope.Error.Code
	msg := envelope.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}
	switch {
	case code == "TIMEOUT" || status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return &Failure{Kind: FailTimeout, Message: msg}
	case code == "OUTPUT_TOO_LARGE" || status == http.StatusRequestEntityTooLarge:
		return &Failure{Kind: FailTooLarge, Message: msg}
	default:
		return &Failure{Kind: FailTransient, Message: msg}
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = models.FormatDate(d)
	}
	return out
}
