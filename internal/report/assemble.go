// Package report shapes engine output into the externally consumed payload
// and renders the downloadable chart document. It is presentation only:
// values are renamed and rounded here, never recomputed.
package report

import (
	"math"

	"portfolioapi/internal/portfolio"
)

// Payload is the response body for /data, /upload, and /manual-entry. Field
// names are the external contract.
type Payload struct {
	Metrics   Metrics             `json:"metrics"`
	Portfolio PortfolioSection    `json:"portfolio"`
	Warnings  []portfolio.Warning `json:"warnings,omitempty"`
	Forecasts map[string]float64  `json:"forecasts,omitempty"`
}

type Metrics struct {
	TotalValue  float64 `json:"total_value"`
	DailyPL     float64 `json:"daily_pl"`
	VaR95       float64 `json:"var_95"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	Beta        float64 `json:"beta"`
}

type PortfolioSection struct {
	HistoricalDates  []string       `json:"historical_dates"`
	HistoricalValues []float64      `json:"historical_values"`
	HistoricalPL     []float64      `json:"historical_pl"`
	Positions        []PositionView `json:"positions"`
}

// PositionView reports one holding. Market fields are null when the ticker's
// price could not be resolved.
type PositionView struct {
	Ticker       string   `json:"ticker"`
	Shares       float64  `json:"shares"`
	MarketValue  *float64 `json:"market_value"`
	UnrealizedPL *float64 `json:"unrealized_pl"`
	Weight       *float64 `json:"weight"`
}

// Assemble converts a snapshot and its metrics into the wire payload.
// Money rounds to 2 decimals and ratios/weights to 4, at this boundary only.
func Assemble(snap *portfolio.Snapshot, metrics portfolio.MetricsResult, forecasts map[string]float64) Payload {
	p := Payload{
		Metrics: Metrics{
			TotalValue:  round2(metrics.TotalValue),
			DailyPL:     round2(metrics.DailyPL),
			VaR95:       round2(metrics.VaR95),
			Volatility:  round4(metrics.Volatility),
			SharpeRatio: round4(metrics.SharpeRatio),
			Beta:        round4(metrics.Beta),
		},
		Portfolio: PortfolioSection{
			HistoricalDates:  emptyIfNilStr(metrics.Dates),
			HistoricalValues: roundAll2(metrics.Values),
			HistoricalPL:     roundAll2(metrics.PL),
			Positions:        make([]PositionView, 0, len(snap.Positions)),
		},
		Warnings:  snap.Warnings,
		Forecasts: roundMap4(forecasts),
	}
	for _, v := range snap.Positions {
		p.Portfolio.Positions = append(p.Portfolio.Positions, PositionView{
			Ticker:       v.Ticker,
			Shares:       v.Shares,
			MarketValue:  roundPtr2(v.MarketValue),
			UnrealizedPL: roundPtr2(v.UnrealizedPL),
			Weight:       roundPtr4(v.Weight),
		})
	}
	return p
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func roundAll2(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = round2(v)
	}
	return out
}

func roundPtr2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}

func roundPtr4(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round4(*v)
	return &r
}

func roundMap4(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round4(v)
	}
	return out
}

func emptyIfNilStr(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
