package portfolio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolioapi/internal/market"
)

// DefaultLookbackDays is the trailing trading-day window used when the
// caller does not specify one.
const DefaultLookbackDays = 252

// AlignPolicy selects how per-ticker date axes combine into one portfolio axis.
type AlignPolicy string

const (
	// AlignIntersection keeps only dates present in every resolvable
	// series. No synthetic prices are fabricated.
	AlignIntersection AlignPolicy = "intersection"
	// AlignForwardFill uses the union of dates from the first observation
	// of every series onward, carrying each ticker's last close forward
	// across its gaps.
	AlignForwardFill AlignPolicy = "forward-fill"
)

// PriceProvider supplies daily close history per ticker.
type PriceProvider interface {
	History(ctx context.Context, symbol string, lookbackDays int) (market.PriceSeries, error)
}

// PositionStore supplies the stored positions for a user.
type PositionStore interface {
	List(ctx context.Context, userID string) ([]Position, error)
}

// PositionView is a Position enriched with market data. Pointer fields are
// nil when the ticker's price could not be resolved.
type PositionView struct {
	Position
	CurrentPrice *float64
	MarketValue  *float64
	UnrealizedPL *float64
	Weight       *float64
}

// Snapshot is the in-memory portfolio state handed to the metrics engine.
// Dates and Values are the aligned portfolio-level value series.
type Snapshot struct {
	AsOf      time.Time
	Positions []PositionView
	Dates     []string
	Values    []float64
	Warnings  []Warning
}

// Builder merges stored positions with fetched price history into a Snapshot.
type Builder struct {
	store       PositionStore
	prices      PriceProvider
	policy      AlignPolicy
	concurrency int
	perTicker   time.Duration
	logger      zerolog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithAlignPolicy selects the date-alignment policy.
func WithAlignPolicy(p AlignPolicy) BuilderOption {
	return func(b *Builder) {
		if p == AlignForwardFill {
			b.policy = AlignForwardFill
		} else {
			b.policy = AlignIntersection
		}
	}
}

// WithFetchConcurrency bounds the ticker fetch fan-out.
func WithFetchConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFetchTimeout sets the per-ticker fetch timeout.
func WithFetchTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d > 0 {
			b.perTicker = d
		}
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder with intersection alignment, a fan-out of 4,
// and a 10s per-ticker timeout.
func NewBuilder(store PositionStore, prices PriceProvider, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:       store,
		prices:      prices,
		policy:      AlignIntersection,
		concurrency: 4,
		perTicker:   10 * time.Second,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build loads the user's positions, fetches history per ticker, and returns
// the snapshot. A ticker whose fetch fails degrades to a nil current price
// and a warning; only a user with no positions (ErrNoPositions) or zero
// resolvable tickers (ErrProviderUnavailable) aborts the build.
func (b *Builder) Build(ctx context.Context, userID string, lookbackDays int) (*Snapshot, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	positions, err := b.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	series, warnings := b.fetchAll(ctx, positions, lookbackDays)
	if len(series) == 0 {
		return nil, ErrProviderUnavailable
	}

	dates, values := alignSeries(positions, series, b.policy)
	snap := &Snapshot{
		AsOf:     time.Now(),
		Dates:    dates,
		Values:   values,
		Warnings: warnings,
	}
	snap.Positions = buildViews(positions, series)
	return snap, nil
}

// fetchAll fans out one fetch per distinct ticker with bounded concurrency
// and a per-ticker timeout. Failures are isolated: siblings keep running and
// each failure becomes a warning.
func (b *Builder) fetchAll(ctx context.Context, positions []Position, lookbackDays int) (map[string]market.PriceSeries, []Warning) {
	tickers := make([]string, 0, len(positions))
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		t := NormalizeTicker(p.Ticker)
		if !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, b.concurrency)
		series   = make(map[string]market.PriceSeries, len(tickers))
		warnings []Warning
	)
	for _, ticker := range tickers {
		wg.Add(1)
		sem <- struct{}{}
		go func(ticker string) {
			defer wg.Done()
			defer func() { <-sem }()
			fetchCtx, cancel := context.WithTimeout(ctx, b.perTicker)
			defer cancel()
			s, err := b.prices.History(fetchCtx, ticker, lookbackDays)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.logger.Warn().Str("ticker", ticker).Err(err).Msg("price history unavailable")
				warnings = append(warnings, Warning{Ticker: ticker, Reason: err.Error()})
				return
			}
			series[ticker] = s
		}(ticker)
	}
	wg.Wait()
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Ticker < warnings[j].Ticker })
	return series, warnings
}

// buildViews computes per-position market figures from the latest close of
// each resolvable series and normalizes weights over resolvable positions.
func buildViews(positions []Position, series map[string]market.PriceSeries) []PositionView {
	views := make([]PositionView, len(positions))
	total := 0.0
	for i, p := range positions {
		p.Ticker = NormalizeTicker(p.Ticker)
		views[i] = PositionView{Position: p}
		s, ok := series[p.Ticker]
		if !ok {
			continue
		}
		price, ok := s.Last()
		if !ok {
			continue
		}
		mv := p.Shares * price
		pl := mv - p.Shares*p.CostBasis
		views[i].CurrentPrice = &price
		views[i].MarketValue = &mv
		views[i].UnrealizedPL = &pl
		total += mv
	}
	if total > 0 {
		for i := range views {
			if views[i].MarketValue != nil {
				w := *views[i].MarketValue / total
				views[i].Weight = &w
			}
		}
	}
	return views
}

// alignSeries produces the portfolio-level value series on a common date
// axis. Under intersection the axis is the dates every resolvable series
// shares; under forward-fill it is the union from the latest first
// observation onward, with gaps carried forward.
func alignSeries(positions []Position, series map[string]market.PriceSeries, policy AlignPolicy) ([]string, []float64) {
	if len(series) == 0 {
		return nil, nil
	}

	sharesByTicker := make(map[string]float64, len(positions))
	for _, p := range positions {
		sharesByTicker[NormalizeTicker(p.Ticker)] += p.Shares
	}

	priceMaps := make(map[string]map[string]float64, len(series))
	for ticker, s := range series {
		m := make(map[string]float64, len(s.Points))
		for _, pt := range s.Points {
			m[pt.Date] = pt.Close
		}
		priceMaps[ticker] = m
	}

	var dates []string
	switch policy {
	case AlignForwardFill:
		dates = unionDates(series)
	default:
		dates = intersectDates(series)
	}
	if len(dates) == 0 {
		return nil, nil
	}

	lastClose := make(map[string]float64, len(series))
	values := make([]float64, 0, len(dates))
	outDates := make([]string, 0, len(dates))
	for _, d := range dates {
		v := 0.0
		complete := true
		for ticker := range series {
			price, ok := priceMaps[ticker][d]
			if ok {
				lastClose[ticker] = price
			} else if policy == AlignForwardFill {
				price, ok = lastClose[ticker]
			}
			if !ok {
				complete = false
				continue
			}
			v += sharesByTicker[ticker] * price
		}
		if !complete {
			continue
		}
		outDates = append(outDates, d)
		values = append(values, v)
	}
	return outDates, values
}

func intersectDates(series map[string]market.PriceSeries) []string {
	counts := make(map[string]int)
	for _, s := range series {
		for _, pt := range s.Points {
			counts[pt.Date]++
		}
	}
	var dates []string
	for d, n := range counts {
		if n == len(series) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

func unionDates(series map[string]market.PriceSeries) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, s := range series {
		for _, pt := range s.Points {
			if !seen[pt.Date] {
				seen[pt.Date] = true
				dates = append(dates, pt.Date)
			}
		}
	}
	sort.Strings(dates)
	return dates
}
