package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chartBody builds a minimal v8 chart response.
func chartBody(ts []int64, closes []float64) string {
	var sb strings.Builder
	sb.WriteString(`{"chart":{"result":[{"timestamp":[`)
	for i, t := range ts {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", t)
	}
	sb.WriteString(`],"indicators":{"quote":[{"close":[`)
	for i, c := range closes {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%g", c)
	}
	sb.WriteString(`]}]}}],"error":null}}`)
	return sb.String()
}

// tradingStamps returns n consecutive daily unix timestamps at 14:30 UTC
// (09:30 New York), one per calendar day.
func tradingStamps(n int) []int64 {
	base := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	out := make([]int64, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i).Unix()
	}
	return out
}

func TestHistory_ParsesChartResponse(t *testing.T) {
	ts := tradingStamps(3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		fmt.Fprint(w, chartBody(ts, []float64{150, 152, 151}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURLs(srv.URL), WithRateLimit(1000))
	series, err := c.History(context.Background(), "aapl", 252)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", series.Ticker)
	require.Len(t, series.Points, 3)
	assert.Equal(t, "2024-01-02", series.Points[0].Date)
	assert.InDelta(t, 151, series.Points[2].Close, 1e-9)
}

func TestHistory_DropsInvalidCloses(t *testing.T) {
	ts := tradingStamps(4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody(ts, []float64{150, 0, -3, 151}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURLs(srv.URL), WithRateLimit(1000))
	series, err := c.History(context.Background(), "AAPL", 252)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.InDelta(t, 150, series.Points[0].Close, 1e-9)
	assert.InDelta(t, 151, series.Points[1].Close, 1e-9)
}

func TestHistory_SparkFallbackOn429(t *testing.T) {
	ts := tradingStamps(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/v8/finance/chart/") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		require.Contains(t, r.URL.Path, "/v7/finance/spark")
		fmt.Fprintf(w, `{"spark":{"result":[{"symbol":"MSFT","response":[{"timestamp":[%d,%d],"close":[300,305]}]}],"error":null}}`,
			ts[0], ts[1])
	}))
	defer srv.Close()

	c := NewClient(WithBaseURLs(srv.URL), WithRateLimit(1000))
	series, err := c.History(context.Background(), "MSFT", 252)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.InDelta(t, 305, series.Points[1].Close, 1e-9)
}

func TestHistory_CachesSeries(t *testing.T) {
	var hits atomic.Int64
	ts := tradingStamps(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, chartBody(ts, []float64{150, 151}))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURLs(srv.URL), WithRateLimit(1000))
	_, err := c.History(context.Background(), "AAPL", 252)
	require.NoError(t, err)
	_, err = c.History(context.Background(), "AAPL", 252)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestHistory_TrimsToLookback(t *testing.T) {
	ts := tradingStamps(10)
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody(ts, closes))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURLs(srv.URL), WithRateLimit(1000))
	series, err := c.History(context.Background(), "AAPL", 4)
	require.NoError(t, err)
	require.Len(t, series.Points, 4)
	assert.InDelta(t, 109, series.Points[3].Close, 1e-9)
}

func TestHistory_EmptySymbol(t *testing.T) {
	c := NewClient()
	_, err := c.History(context.Background(), "  ", 252)
	assert.Error(t, err)
}

func TestRangeForDays(t *testing.T) {
	assert.Equal(t, "5d", rangeForDays(5))
	assert.Equal(t, "1y", rangeForDays(252))
	assert.Equal(t, "5y", rangeForDays(1000))
}
