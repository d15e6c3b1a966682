package travel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestEstimateMatrixShape(t *testing.T) {
	m, err := Estimate{}.Matrix(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(m) != 3 || len(m[0]) != 3 {
		t.Fatalf("unexpected shape: %v", m)
	}
	if m[0][0] != 30 {
		t.Fatalf("diagonal = %d, want floor 30", m[0][0])
	}
	if m[0][1] != 30 || m[0][2] != 40 {
		t.Fatalf("row = %v, want [30 30 40]", m[0])
	}
	if m[2][0] != m[0][2] {
		t.Fatalf("estimate matrix should be symmetric")
	}
}

func googleStub(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleWithBase("test-key", srv.URL, srv.Client())
}

func TestGoogleMatrixMinutesAndUnreachable(t *testing.T) {
	g := googleStub(t, func(w http.ResponseWriter, r *http.Request) {
		n := len(strings.Split(r.URL.Query().Get("destinations"), "|"))
		elems := make([]map[string]any, n)
		for i := range elems {
			if i == 1 {
				elems[i] = map[string]any{"status": "ZERO_RESULTS"}
				continue
			}
			elems[i] = map[string]any{"status": "OK", "duration": map[string]any{"value": 1800}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"rows":   []map[string]any{{"elements": elems}},
		})
	})

	m, err := g.Matrix(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if m[0][0] != 30 {
		t.Fatalf("minutes = %d, want 1800s/60", m[0][0])
	}
	if m[0][1] != Unreachable {
		t.Fatalf("failed element = %d, want %d", m[0][1], Unreachable)
	}
}

func TestGoogleMatrixBatchesDestinations(t *testing.T) {
	var batches []int
	g := googleStub(t, func(w http.ResponseWriter, r *http.Request) {
		n := len(strings.Split(r.URL.Query().Get("destinations"), "|"))
		batches = append(batches, n)
		elems := make([]map[string]any, n)
		for i := range elems {
			elems[i] = map[string]any{"status": "OK", "duration": map[string]any{"value": 600}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"rows":   []map[string]any{{"elements": elems}},
		})
	})

	locations := make([]string, 12)
	for i := range locations {
		locations[i] = string(rune('a' + i))
	}
	m, err := g.Matrix(context.Background(), locations)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if len(m) != 12 || len(m[3]) != 12 {
		t.Fatalf("unexpected shape")
	}
	// 12 destinations split as 10+2 per origin row.
	if batches[0] != 10 || batches[1] != 2 {
		t.Fatalf("batch sizes = %v, want leading 10 then 2", batches[:2])
	}
}

func TestGoogleMatrixWrapsErrUnavailable(t *testing.T) {
	g := googleStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := g.Matrix(context.Background(), []string{"a", "b"})
	if err == nil || !strings.Contains(err.Error(), ErrUnavailable.Error()) {
		t.Fatalf("err = %v, want wrapped ErrUnavailable", err)
	}
}

func TestGoogleRetriesServerErrors(t *testing.T) {
	attempts := 0
	g := googleStub(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"rows": []map[string]any{{"elements": []map[string]any{
				{"status": "OK", "duration": map[string]any{"value": 60}},
			}}},
		})
	})
	m, err := g.Matrix(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Matrix after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if m[0][0] != 1 {
		t.Fatalf("minutes = %d, want 1", m[0][0])
	}
}

// countingProvider tracks how many times the wrapped provider is hit.
type countingProvider struct {
	calls int
}

func (c *countingProvider) Matrix(_ context.Context, locations []string) ([][]int, error) {
	c.calls++
	n := len(locations)
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, n)
		for j := range out[i] {
			out[i][j] = 30
		}
	}
	return out, nil
}

func TestCacheHitSkipsProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingProvider{}
	c := NewCache(rdb, inner, time.Hour)

	locs := []string{"a", "b"}
	if _, err := c.Matrix(context.Background(), locs); err != nil {
		t.Fatalf("first Matrix: %v", err)
	}
	if _, err := c.Matrix(context.Background(), locs); err != nil {
		t.Fatalf("second Matrix: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (second call cached)", inner.calls)
	}

	// A different location order is a different key.
	if _, err := c.Matrix(context.Background(), []string{"b", "a"}); err != nil {
		t.Fatalf("reordered Matrix: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", inner.calls)
	}
}

func TestCacheDegradesWithoutRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	inner := &countingProvider{}
	c := NewCache(rdb, inner, time.Hour)
	if _, err := c.Matrix(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Matrix should fall through to provider: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("provider not consulted")
	}
}
