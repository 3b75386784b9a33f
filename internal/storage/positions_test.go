package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioapi/internal/portfolio"
)

func newTestStore(t *testing.T) *PositionStore {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSchema(db))
	return NewPositionStore(db)
}

func TestStore_ListUnknownUserIsEmpty(t *testing.T) {
	s := newTestStore(t)
	positions, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestStore_ReplaceThenList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{
		{Ticker: "msft", Shares: 5, CostBasis: 300},
		{Ticker: "AAPL", Shares: 10, CostBasis: 150},
	}))
	positions, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, "MSFT", positions[1].Ticker)

	// A second replace swaps the whole portfolio.
	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{
		{Ticker: "NVDA", Shares: 1, CostBasis: 500},
	}))
	positions, err = s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "NVDA", positions[0].Ticker)
}

func TestStore_ReplaceMergesDuplicateInputRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{
		{Ticker: "AAPL", Shares: 10, CostBasis: 100},
		{Ticker: "AAPL", Shares: 10, CostBasis: 200},
	}))
	positions, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 20, positions[0].Shares, 1e-9)
	assert.InDelta(t, 150, positions[0].CostBasis, 1e-9)
}

func TestStore_MergeWeightedAverage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{
		{Ticker: "AAPL", Shares: 10, CostBasis: 100},
	}))
	require.NoError(t, s.Merge(ctx, "u1", []portfolio.Position{
		{Ticker: "AAPL", Shares: 10, CostBasis: 200},
		{Ticker: "MSFT", Shares: 5, CostBasis: 300},
	}))

	positions, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.InDelta(t, 20, positions[0].Shares, 1e-9)
	assert.InDelta(t, 150, positions[0].CostBasis, 1e-9)
	assert.Equal(t, "MSFT", positions[1].Ticker)
}

func TestStore_UsersAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{{Ticker: "AAPL", Shares: 1, CostBasis: 100}}))
	require.NoError(t, s.Replace(ctx, "u2", []portfolio.Position{{Ticker: "MSFT", Shares: 2, CostBasis: 200}}))

	p1, err := s.List(ctx, "u1")
	require.NoError(t, err)
	p2, err := s.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, p1, 1)
	require.Len(t, p2, 1)
	assert.Equal(t, "AAPL", p1[0].Ticker)
	assert.Equal(t, "MSFT", p2[0].Ticker)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, "u1", []portfolio.Position{
		{Ticker: "AAPL", Shares: 1, CostBasis: 100},
		{Ticker: "MSFT", Shares: 2, CostBasis: 200},
	}))
	require.NoError(t, s.Remove(ctx, "u1", "aapl"))

	positions, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "MSFT", positions[0].Ticker)
}
