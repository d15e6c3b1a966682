package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// destinationBatch limits destinations per request to stay within the
// Distance Matrix element quota.
const destinationBatch = 10

// Google fetches drive times from the Google Distance Matrix API.
type Google struct {
	apiKey  string
	baseURL string
	session *http.Client
}

func NewGoogle(apiKey string) *Google {
	return &Google{
		apiKey:  apiKey,
		baseURL: defaultGoogleBaseURL,
		session: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewGoogleWithBase is used by tests to point the client at a fake server.
func NewGoogleWithBase(apiKey, baseURL string, client *http.Client) *Google {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Google{apiKey: apiKey, baseURL: baseURL, session: client}
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Matrix builds the full N×N minute matrix one origin row at a time,
// batching destinations per request. Any transport or service failure
// aborts the whole matrix.
func (g *Google) Matrix(ctx context.Context, locations []string) ([][]int, error) {
	out := make([][]int, len(locations))
	for oi, origin := range locations {
		row := make([]int, 0, len(locations))
		for start := 0; start < len(locations); start += destinationBatch {
			end := start + destinationBatch
			if end > len(locations) {
				end = len(locations)
			}
			batch, err := g.fetchRow(ctx, origin, locations[start:end])
			if err != nil {
				return nil, fmt.Errorf("%w: origin %d: %v", ErrUnavailable, oi, err)
			}
			row = append(row, batch...)
		}
		out[oi] = row
	}
	return out, nil
}

// fetchRow retrieves minutes from one origin to a destination batch.
func (g *Google) fetchRow(ctx context.Context, origin string, destinations []string) ([]int, error) {
	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", strings.Join(destinations, "|"))
	q.Set("mode", "driving")
	q.Set("traffic_model", "best_guess")
	q.Set("departure_time", strconv.FormatInt(time.Now().Unix(), 10))
	q.Set("key", g.apiKey)

	resp, err := g.doWithRetry(ctx, g.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %v", err)
	}
	if mr.Status != "OK" {
		return nil, fmt.Errorf("matrix status %s", mr.Status)
	}
	if len(mr.Rows) != 1 {
		return nil, fmt.Errorf("expected 1 row, got %d", len(mr.Rows))
	}
	elems := mr.Rows[0].Elements
	if len(elems) != len(destinations) {
		return nil, fmt.Errorf("row length %d does not match destinations %d", len(elems), len(destinations))
	}
	out := make([]int, len(elems))
	for i, e := range elems {
		if e.Status != "OK" {
			out[i] = Unreachable
			continue
		}
		out[i] = e.Duration.Value / 60
	}
	return out, nil
}

// doWithRetry retries transient failures (network errors, 5xx responses)
// with exponential backoff while respecting context cancellation.
func (g *Google) doWithRetry(ctx context.Context, rawurl string) (*http.Response, error) {
	const maxAttempts = 4
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return nil, err
		}
		resp, err := g.session.Do(req)
		if err == nil {
			if resp.StatusCode < 400 {
				return resp, nil
			}
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
			if resp.StatusCode < 500 {
				// Auth and quota errors will not recover on retry.
				return nil, lastErr
			}
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}
