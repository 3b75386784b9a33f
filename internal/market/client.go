package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultCacheTTL  = 15 * time.Minute
)

var defaultBaseURLs = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

var backoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// Client fetches daily price history from the Yahoo v8 chart API, with a
// spark v7 fallback and a short-lived in-process cache.
type Client struct {
	baseURLs   []string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *seriesCache
	logger     zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURLs overrides the query hosts (tests point this at a fake server).
func WithBaseURLs(urls ...string) Option {
	return func(c *Client) {
		c.baseURLs = urls
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the outbound request rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithCacheTTL sets how long fetched series are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newSeriesCache(ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Yahoo chart client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURLs:   defaultBaseURLs,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		cache:      newSeriesCache(DefaultCacheTTL),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rangeForDays maps a lookback in trading days onto a Yahoo range parameter.
func rangeForDays(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 21:
		return "1mo"
	case days <= 63:
		return "3mo"
	case days <= 126:
		return "6mo"
	case days <= 252:
		return "1y"
	case days <= 504:
		return "2y"
	default:
		return "5y"
	}
}

// History returns daily closes for symbol covering at least lookbackDays
// trading days where available. The series is ascending by date with one
// close per date; non-positive closes and gross outliers are dropped.
func (c *Client) History(ctx context.Context, symbol string, lookbackDays int) (PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return PriceSeries{}, errors.New("empty symbol")
	}
	rangeParam := rangeForDays(lookbackDays)
	cacheKey := symbol + "|" + rangeParam
	if s, ok := c.cache.get(cacheKey); ok {
		return s, nil
	}

	ts, cl, err := c.fetchChart(ctx, symbol, rangeParam)
	if err != nil {
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("chart fetch failed, trying spark")
		ts, cl, err = c.fetchSpark(ctx, symbol, rangeParam)
	}
	if err != nil {
		return PriceSeries{}, err
	}

	ts, cl = filterValid(ts, cl)
	ts, cl = filterIQR(ts, cl, 1.5, 20)
	points := collapseDaily(ts, cl)
	if len(points) > lookbackDays && lookbackDays > 0 {
		points = points[len(points)-lookbackDays:]
	}
	if len(points) == 0 {
		return PriceSeries{}, fmt.Errorf("no usable bars for %s", symbol)
	}

	series := PriceSeries{Ticker: symbol, Points: points}
	c.cache.set(cacheKey, series)
	return series, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol, rangeParam string) ([]int64, []float64, error) {
	var yc yahooChartResp
	path := fmt.Sprintf("/v8/finance/chart/%s?range=%s&interval=1d&events=div,splits", symbol, rangeParam)
	if err := c.getJSON(ctx, symbol, path, &yc); err != nil {
		return nil, nil, err
	}
	if len(yc.Chart.Result) == 0 || len(yc.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil, errors.New("no data")
	}
	ts := yc.Chart.Result[0].Timestamp
	cl := yc.Chart.Result[0].Indicators.Quote[0].Close
	if len(ts) == 0 || len(cl) == 0 {
		return nil, nil, errors.New("empty bars")
	}
	return ts, cl, nil
}

func (c *Client) fetchSpark(ctx context.Context, symbol, rangeParam string) ([]int64, []float64, error) {
	var sp yahooSparkResp
	path := fmt.Sprintf("/v7/finance/spark?symbols=%s&range=%s&interval=1d", symbol, rangeParam)
	if err := c.getJSON(ctx, symbol, path, &sp); err != nil {
		return nil, nil, err
	}
	if len(sp.Spark.Result) == 0 || len(sp.Spark.Result[0].Response) == 0 {
		return nil, nil, errors.New("no spark data")
	}
	r := sp.Spark.Result[0].Response[0]
	if len(r.Timestamp) == 0 || len(r.Close) == 0 {
		return nil, nil, errors.New("empty spark bars")
	}
	return r.Timestamp, r.Close, nil
}

// getJSON tries each host with bounded retry and backoff, detecting 429s and
// the HTML error pages Yahoo serves when throttling.
func (c *Client) getJSON(ctx context.Context, symbol, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt < len(backoffs)+1; attempt++ {
		for _, base := range c.baseURLs {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
			req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
			req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", symbol))
			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("read response: %w", readErr)
				continue
			}
			if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
				lastErr = fmt.Errorf("%s returned 429", base)
				continue
			}
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("%s returned %d: %s", base, resp.StatusCode, preview(body))
				continue
			}
			if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
				lastErr = fmt.Errorf("non-json body: %s", preview(body))
				continue
			}
			if err := json.Unmarshal(body, out); err != nil {
				lastErr = fmt.Errorf("parse json: %v; body: %s", err, preview(body))
				continue
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < len(backoffs) {
			select {
			case <-time.After(backoffs[attempt]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
