package portfolio

import "errors"

var (
	// ErrNoPositions means the user has no stored positions to value.
	ErrNoPositions = errors.New("no positions for user")

	// ErrProviderUnavailable means price history could not be fetched for
	// any ticker, so no metric is computable.
	ErrProviderUnavailable = errors.New("price provider unavailable for all tickers")
)

// Warning records a per-ticker degradation that did not abort the build.
type Warning struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}
