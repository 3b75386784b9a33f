package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePositions_WeightedAverageCost(t *testing.T) {
	existing := []Position{{Ticker: "AAPL", Shares: 10, CostBasis: 100}}
	added := []Position{{Ticker: "AAPL", Shares: 10, CostBasis: 200}}

	merged := MergePositions(existing, added)
	require.Len(t, merged, 1)
	assert.Equal(t, "AAPL", merged[0].Ticker)
	assert.InDelta(t, 20, merged[0].Shares, 1e-9)
	assert.InDelta(t, 150, merged[0].CostBasis, 1e-9)
}

func TestMergePositions_EmptyAddedIsIdentity(t *testing.T) {
	existing := []Position{
		{Ticker: "AAPL", Shares: 10, CostBasis: 150},
		{Ticker: "MSFT", Shares: 5, CostBasis: 300},
	}
	merged := MergePositions(existing, nil)
	assert.Equal(t, existing, merged)
}

func TestMergePositions_NormalizesAndAddsNewTickers(t *testing.T) {
	merged := MergePositions(
		[]Position{{Ticker: "msft", Shares: 5, CostBasis: 300}},
		[]Position{{Ticker: " aapl ", Shares: 1, CostBasis: 150}},
	)
	require.Len(t, merged, 2)
	assert.Equal(t, "AAPL", merged[0].Ticker)
	assert.Equal(t, "MSFT", merged[1].Ticker)
}

func TestMergePositions_DuplicatesWithinOneList(t *testing.T) {
	merged := MergePositions(nil, []Position{
		{Ticker: "AAPL", Shares: 10, CostBasis: 100},
		{Ticker: "AAPL", Shares: 10, CostBasis: 200},
	})
	require.Len(t, merged, 1)
	assert.InDelta(t, 150, merged[0].CostBasis, 1e-9)
}

func TestPositionValidate(t *testing.T) {
	assert.NoError(t, Position{Ticker: "AAPL", Shares: 0.5, CostBasis: 0}.Validate())
	assert.Error(t, Position{Ticker: "", Shares: 1, CostBasis: 1}.Validate())
	assert.Error(t, Position{Ticker: "AAPL", Shares: 0, CostBasis: 1}.Validate())
	assert.Error(t, Position{Ticker: "AAPL", Shares: 1, CostBasis: -1}.Validate())
}
