package portfolio

import (
	"math"

	"portfolioapi/internal/market"
)

// Forecast settings: five lagged daily returns as features, fixed LASSO
// penalty, capped coordinate-descent iterations.
const (
	forecastLags   = 5
	lassoAlpha     = 0.01
	lassoMaxIter   = 200
	lassoTolerance = 1e-8
	minForecastObs = 30
)

// ForecastNextReturn estimates the next-day simple return for a ticker by
// fitting a LASSO regression of daily returns on their five lags. It never
// fails: short or degenerate history yields 0.
func ForecastNextReturn(series market.PriceSeries) float64 {
	closes := make([]float64, len(series.Points))
	for i, pt := range series.Points {
		closes[i] = pt.Close
	}
	returns := simpleReturns(closes)
	if len(returns) < minForecastObs {
		return 0
	}

	// One training row per day t: target r[t], features r[t-1]..r[t-lags].
	rows := len(returns) - forecastLags
	x := make([][]float64, rows)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t := i + forecastLags
		y[i] = returns[t]
		x[i] = make([]float64, forecastLags)
		for lag := 1; lag <= forecastLags; lag++ {
			x[i][lag-1] = returns[t-lag]
		}
	}

	means, stds := standardize(x)
	yMean := mean(y)
	for i := range y {
		y[i] -= yMean
	}

	w := lassoFit(x, y)

	// Latest lags, standardized with the training parameters.
	pred := yMean
	for lag := 1; lag <= forecastLags; lag++ {
		f := returns[len(returns)-lag]
		j := lag - 1
		if stds[j] > 0 {
			pred += w[j] * (f - means[j]) / stds[j]
		}
	}
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return 0
	}
	return pred
}

// standardize scales each feature column to zero mean and unit variance in
// place, returning the per-column means and standard deviations. Constant
// columns are zeroed.
func standardize(x [][]float64) (means, stds []float64) {
	if len(x) == 0 {
		return nil, nil
	}
	cols := len(x[0])
	means = make([]float64, cols)
	stds = make([]float64, cols)
	n := float64(len(x))
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := range x {
			sum += x[i][j]
		}
		means[j] = sum / n
		ss := 0.0
		for i := range x {
			d := x[i][j] - means[j]
			ss += d * d
		}
		stds[j] = math.Sqrt(ss / n)
		for i := range x {
			if stds[j] > 0 {
				x[i][j] = (x[i][j] - means[j]) / stds[j]
			} else {
				x[i][j] = 0
			}
		}
	}
	return means, stds
}

// lassoFit minimizes 1/(2N)*||y - Xw||^2 + alpha*||w||_1 by cyclic
// coordinate descent with soft thresholding. Features are assumed
// standardized, the target centered.
func lassoFit(x [][]float64, y []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	cols := len(x[0])
	w := make([]float64, cols)
	resid := make([]float64, n)
	copy(resid, y)

	for iter := 0; iter < lassoMaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < cols; j++ {
			// rho = (1/N) * x_j . (resid + w_j * x_j)
			rho := 0.0
			zj := 0.0
			for i := 0; i < n; i++ {
				rho += x[i][j] * (resid[i] + w[j]*x[i][j])
				zj += x[i][j] * x[i][j]
			}
			rho /= float64(n)
			zj /= float64(n)
			if zj == 0 {
				continue
			}
			newW := softThreshold(rho, lassoAlpha) / zj
			if delta := newW - w[j]; delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= delta * x[i][j]
				}
				if d := math.Abs(delta); d > maxDelta {
					maxDelta = d
				}
				w[j] = newW
			}
		}
		if maxDelta < lassoTolerance {
			break
		}
	}
	return w
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
