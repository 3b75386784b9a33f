package portfolio

import (
	"fmt"
	"sort"
	"strings"
)

// Position is one holding: ticker identity, share count, and the per-share
// price paid. One position per ticker per user; duplicates merge.
type Position struct {
	Ticker    string  `json:"ticker"`
	Shares    float64 `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
}

// NormalizeTicker trims and uppercases a raw ticker string.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate reports whether the position is well-formed.
func (p Position) Validate() error {
	if NormalizeTicker(p.Ticker) == "" {
		return fmt.Errorf("empty ticker")
	}
	if p.Shares <= 0 {
		return fmt.Errorf("%s: shares must be > 0", p.Ticker)
	}
	if p.CostBasis < 0 {
		return fmt.Errorf("%s: cost basis must be >= 0", p.Ticker)
	}
	return nil
}

// MergePositions folds added positions into existing ones. Shares add and the
// cost basis becomes the share-weighted average:
//
//	newShares = oldShares + addedShares
//	newCost   = (oldShares*oldCost + addedShares*addedCost) / newShares
//
// Tickers are normalized before matching. The result is sorted by ticker so
// callers get a stable order. Merging an empty added list returns the
// existing positions unchanged.
func MergePositions(existing, added []Position) []Position {
	byTicker := make(map[string]Position, len(existing)+len(added))
	for _, p := range existing {
		p.Ticker = NormalizeTicker(p.Ticker)
		if cur, ok := byTicker[p.Ticker]; ok {
			byTicker[p.Ticker] = mergePair(cur, p)
		} else {
			byTicker[p.Ticker] = p
		}
	}
	for _, p := range added {
		p.Ticker = NormalizeTicker(p.Ticker)
		if cur, ok := byTicker[p.Ticker]; ok {
			byTicker[p.Ticker] = mergePair(cur, p)
		} else {
			byTicker[p.Ticker] = p
		}
	}
	out := make([]Position, 0, len(byTicker))
	for _, p := range byTicker {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func mergePair(a, b Position) Position {
	shares := a.Shares + b.Shares
	if shares == 0 {
		return Position{Ticker: a.Ticker}
	}
	return Position{
		Ticker:    a.Ticker,
		Shares:    shares,
		CostBasis: (a.Shares*a.CostBasis + b.Shares*b.CostBasis) / shares,
	}
}
