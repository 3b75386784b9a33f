package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionsCSV_HeaderCaseInsensitive(t *testing.T) {
	csv := "Ticker,Notes,SHARES,Price\naapl,ignored,10,150.5\nmsft,x,5,300\n"
	positions, rowErrors, err := parsePositionsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.InDelta(t, 150.5, positions[0].CostBasis, 1e-9)
	assert.InDelta(t, 5, positions[1].Shares, 1e-9)
}

func TestParsePositionsCSV_BadRowsCollectedNotFatal(t *testing.T) {
	csv := strings.Join([]string{
		"ticker,shares,price",
		"AAPL,10,150",
		"MSFT,abc,300", // non-numeric shares
		"GOOG,5,xyz",   // non-numeric price
		",5,100",       // empty ticker
		"NVDA,-2,100",  // non-positive shares
		"TSLA,1,200",
	}, "\n")
	positions, rowErrors, err := parsePositionsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assert.Equal(t, "TSLA", positions[1].Ticker)

	require.Len(t, rowErrors, 4)
	assert.Equal(t, 3, rowErrors[0].Row)
	assert.Contains(t, rowErrors[0].Message, "non-numeric shares")
	assert.Equal(t, 4, rowErrors[1].Row)
	assert.Contains(t, rowErrors[1].Message, "non-numeric price")
}

func TestParsePositionsCSV_MissingColumnFailsWholeFile(t *testing.T) {
	csv := "ticker,qty,price\nAAPL,10,150\n"
	_, _, err := parsePositionsCSV(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestParsePositionsCSV_ShortRow(t *testing.T) {
	csv := "ticker,shares,price\nAAPL,10\nMSFT,5,300\n"
	positions, rowErrors, err := parsePositionsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "MSFT", positions[0].Ticker)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 2, rowErrors[0].Row)
}
