package market

import (
	"math"
	"sort"
	"time"
)

// marketTime returns America/New_York, falling back to fixed EST if tzdata is missing.
func marketTime() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// filterValid removes points with non-positive, NaN, or Inf closes, keeping
// timestamp and value arrays aligned.
func filterValid(ts []int64, cl []float64) ([]int64, []float64) {
	if len(ts) != len(cl) {
		n := len(ts)
		if len(cl) < n {
			n = len(cl)
		}
		ts = ts[:n]
		cl = cl[:n]
	}
	outTs := make([]int64, 0, len(ts))
	outCl := make([]float64, 0, len(cl))
	for i := 0; i < len(ts); i++ {
		if cl[i] <= 0 || math.IsNaN(cl[i]) || math.IsInf(cl[i], 0) {
			continue
		}
		outTs = append(outTs, ts[i])
		outCl = append(outCl, cl[i])
	}
	return outTs, outCl
}

// filterIQR removes outliers using the Interquartile Range rule. Any point
// with value outside [Q1 - k*IQR, Q3 + k*IQR] is dropped. Short series
// (< minPoints) are returned untouched.
func filterIQR(ts []int64, cl []float64, k float64, minPoints int) ([]int64, []float64) {
	if len(cl) < minPoints {
		return ts, cl
	}
	vals := make([]float64, len(cl))
	copy(vals, cl)
	sort.Float64s(vals)
	percentile := func(p float64) float64 {
		pos := p * float64(len(vals)-1)
		lo := int(pos)
		hi := lo + 1
		if hi >= len(vals) {
			return vals[lo]
		}
		frac := pos - float64(lo)
		return vals[lo]*(1-frac) + vals[hi]*frac
	}
	q1 := percentile(0.25)
	q3 := percentile(0.75)
	iqr := q3 - q1
	if iqr <= 0 {
		return ts, cl
	}
	lower := q1 - k*iqr
	upper := q3 + k*iqr
	outTs := make([]int64, 0, len(ts))
	outCl := make([]float64, 0, len(cl))
	for i := 0; i < len(ts); i++ {
		if cl[i] < lower || cl[i] > upper {
			continue
		}
		outTs = append(outTs, ts[i])
		outCl = append(outCl, cl[i])
	}
	if len(outCl) < minPoints/2 {
		return ts, cl
	}
	return outTs, outCl
}

// collapseDaily turns unix timestamps into exchange-local trading dates with
// one close per date (later bar wins), ascending and deduplicated.
func collapseDaily(ts []int64, cl []float64) []PricePoint {
	loc := marketTime()
	byDate := make(map[string]float64, len(ts))
	order := make([]string, 0, len(ts))
	for i, t := range ts {
		if i >= len(cl) {
			break
		}
		d := time.Unix(t, 0).In(loc).Format("2006-01-02")
		if _, seen := byDate[d]; !seen {
			order = append(order, d)
		}
		byDate[d] = cl[i]
	}
	sort.Strings(order)
	points := make([]PricePoint, 0, len(order))
	for _, d := range order {
		points = append(points, PricePoint{Date: d, Close: byDate[d]})
	}
	return points
}
