package report

import (
	"fmt"
	"time"

	"github.com/vicanso/go-charts/v2"
)

// RenderChart draws the aligned portfolio value series as a PNG line chart
// with the headline metrics in the subtitle. This is the binary document
// served by GET /report.
func RenderChart(p Payload) ([]byte, error) {
	dates := p.Portfolio.HistoricalDates
	values := p.Portfolio.HistoricalValues
	if len(values) == 0 {
		return nil, fmt.Errorf("no historical values to chart")
	}

	xLabels := make([]string, len(dates))
	for i, d := range dates {
		label := d
		if t, err := time.Parse("2006-01-02", d); err == nil {
			if len(dates) <= 60 {
				label = t.Format("Jan 02")
			} else {
				label = t.Format("Jan '06")
			}
		}
		xLabels[i] = label
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	title := "Portfolio Value"
	subtitle := fmt.Sprintf("Value: $%.2f | Daily P&L: $%.2f | VaR95: $%.2f | Vol: %.2f%% | Sharpe: %.2f | Beta: %.2f",
		p.Metrics.TotalValue, p.Metrics.DailyPL, p.Metrics.VaR95,
		p.Metrics.Volatility*100, p.Metrics.SharpeRatio, p.Metrics.Beta)

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	painter, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title+"\n"+subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return painter.Bytes()
}
