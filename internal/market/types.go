package market

import (
	"time"
)

// PricePoint is one trading day's close.
type PricePoint struct {
	Date  string // YYYY-MM-DD, exchange-local
	Close float64
}

// PriceSeries holds daily closes for one ticker, ascending by date,
// no duplicate dates.
type PriceSeries struct {
	Ticker string
	Points []PricePoint
}

// Last returns the most recent close, or false when the series is empty.
func (s PriceSeries) Last() (float64, bool) {
	if len(s.Points) == 0 {
		return 0, false
	}
	return s.Points[len(s.Points)-1].Close, true
}

// yahooChartResp mirrors Yahoo v8 chart response (trimmed to needed fields)
type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// yahooSparkResp mirrors Yahoo v7 spark fallback (trimmed)
type yahooSparkResp struct {
	Spark struct {
		Result []struct {
			Symbol   string `json:"symbol"`
			Response []struct {
				Timestamp []int64   `json:"timestamp"`
				Close     []float64 `json:"close"`
			} `json:"response"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"spark"`
}

type seriesCacheEntry struct {
	createdAt time.Time
	series    PriceSeries
}
