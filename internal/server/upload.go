package server

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"portfolioapi/internal/portfolio"
)

// RowError reports one rejected upload row. Row numbers are 1-based and
// count the header as row 1.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// parsePositionsCSV reads a tabular upload. The first row is a header whose
// columns match ticker/shares/price case-insensitively; unrecognized columns
// are ignored. Bad rows are collected as RowErrors without aborting the
// valid ones. Only a missing required column fails the whole file.
func parsePositionsCSV(r io.Reader) ([]portfolio.Position, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read header row: %v", err)
	}
	tickerIdx, sharesIdx, priceIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "ticker":
			tickerIdx = i
		case "shares":
			sharesIdx = i
		case "price":
			priceIdx = i
		}
	}
	if tickerIdx < 0 || sharesIdx < 0 || priceIdx < 0 {
		return nil, nil, fmt.Errorf("header must contain ticker, shares, and price columns")
	}

	var (
		positions []portfolio.Position
		rowErrors []RowError
	)
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if maxIdx(tickerIdx, sharesIdx, priceIdx) >= len(record) {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: "too few columns"})
			continue
		}
		shares, err := strconv.ParseFloat(strings.TrimSpace(record[sharesIdx]), 64)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("non-numeric shares %q", record[sharesIdx])})
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[priceIdx]), 64)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: fmt.Sprintf("non-numeric price %q", record[priceIdx])})
			continue
		}
		p := portfolio.Position{
			Ticker:    portfolio.NormalizeTicker(record[tickerIdx]),
			Shares:    shares,
			CostBasis: price,
		}
		if err := p.Validate(); err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		positions = append(positions, p)
	}
	return positions, rowErrors, nil
}

func maxIdx(idxs ...int) int {
	m := idxs[0]
	for _, i := range idxs[1:] {
		if i > m {
			m = i
		}
	}
	return m
}
