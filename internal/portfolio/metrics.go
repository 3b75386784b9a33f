package portfolio

import (
	"math"

	"portfolioapi/internal/market"
)

const tradingDaysPerYear = 252.0

// varConfidenceZ is the one-sided 95% normal quantile used for parametric
// VaR. Value at Risk here is the parametric normal estimate
// total_value * 1.645 * daily_stddev, chosen over historical simulation for
// determinism on short windows.
const varConfidenceZ = 1.645

// MetricsResult carries every analytical figure for one request. Degenerate
// inputs never error: volatility, Sharpe, and VaR fall back to 0 and beta
// to 1 as documented on Compute.
type MetricsResult struct {
	TotalValue  float64
	DailyPL     float64
	VaR95       float64
	Volatility  float64
	SharpeRatio float64
	Beta        float64
	Dates       []string
	Values      []float64
	PL          []float64
}

// Compute derives all portfolio metrics from a snapshot. Pure: the snapshot
// is read-only and no locking is needed.
//
// Conventions, applied uniformly: simple daily returns of the aligned value
// series; sample statistics (N-1 divisor); volatility annualized by sqrt(252).
// Fewer than 2 return observations give volatility/Sharpe/VaR of 0; a
// benchmark with fewer than 2 common dates or zero variance gives beta 1.
func Compute(snap *Snapshot, riskFreeRate float64, benchmark market.PriceSeries) MetricsResult {
	res := MetricsResult{
		Beta:   1.0,
		Dates:  snap.Dates,
		Values: snap.Values,
		PL:     diffs(snap.Values),
	}

	for _, v := range snap.Positions {
		if v.MarketValue != nil {
			res.TotalValue += *v.MarketValue
		}
	}

	if n := len(snap.Values); n >= 2 {
		res.DailyPL = snap.Values[n-1] - snap.Values[n-2]
	}

	returns := simpleReturns(snap.Values)
	dailyVol := math.Sqrt(sampleVariance(returns))
	res.Volatility = dailyVol * math.Sqrt(tradingDaysPerYear)
	res.VaR95 = res.TotalValue * varConfidenceZ * dailyVol

	if res.Volatility > 0 {
		res.SharpeRatio = (mean(returns)*tradingDaysPerYear - riskFreeRate) / res.Volatility
	}

	if beta, ok := computeBeta(snap.Dates, snap.Values, benchmark); ok {
		res.Beta = beta
	}
	return res
}

// computeBeta aligns the benchmark onto the snapshot's date axis and returns
// cov(r, b) / var(b). ok is false when fewer than 2 common dates remain or
// the benchmark variance is zero.
func computeBeta(dates []string, values []float64, benchmark market.PriceSeries) (float64, bool) {
	if len(dates) != len(values) || len(benchmark.Points) == 0 {
		return 0, false
	}
	benchClose := make(map[string]float64, len(benchmark.Points))
	for _, pt := range benchmark.Points {
		benchClose[pt.Date] = pt.Close
	}
	var pv, bv []float64
	for i, d := range dates {
		if c, ok := benchClose[d]; ok {
			pv = append(pv, values[i])
			bv = append(bv, c)
		}
	}
	r := simpleReturns(pv)
	b := simpleReturns(bv)
	varB := sampleVariance(b)
	if len(r) < 1 || varB == 0 {
		return 0, false
	}
	return covariance(r, b) / varB, true
}

func simpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

func diffs(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		out = append(out, values[i]-values[i-1])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleVariance uses the N-1 divisor. Returns 0 for fewer than 2 values.
func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

// covariance uses the N-1 divisor over the common length of xs and ys.
func covariance(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}
	xs, ys = xs[:n], ys[:n]
	mx, my := mean(xs), mean(ys)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(n-1)
}
