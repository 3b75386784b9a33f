package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"portfolioapi/internal/market"
	"portfolioapi/internal/portfolio"
	"portfolioapi/internal/report"
)

// dataResponse is the /data shape; row_errors appears only after an upload
// with rejected rows.
type dataResponse struct {
	report.Payload
	RowErrors []RowError `json:"row_errors,omitempty"`
}

// GET /data?user_id=<id>
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	s.respondWithData(w, r, userID, nil)
}

// POST /upload?user_id=<id>  (multipart file, CSV: ticker, shares, price)
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing multipart file field \"file\"")
		return
	}
	defer file.Close()

	positions, rowErrors, err := parsePositionsCSV(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(positions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "no valid rows in upload",
			"row_errors": rowErrors,
		})
		return
	}
	if err := s.store.Replace(r.Context(), userID, positions); err != nil {
		s.logger.Error().Str("user_id", userID).Err(err).Msg("replace positions failed")
		httpError(w, http.StatusInternalServerError, "failed to store positions")
		return
	}
	s.respondWithData(w, r, userID, rowErrors)
}

type manualEntry struct {
	Ticker string  `json:"ticker"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
}

// POST /manual-entry?user_id=<id>  (JSON array of {ticker, shares, price})
func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var entries []manualEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if len(entries) == 0 {
		httpError(w, http.StatusBadRequest, "empty position list")
		return
	}
	added := make([]portfolio.Position, 0, len(entries))
	for i, e := range entries {
		p := portfolio.Position{
			Ticker:    portfolio.NormalizeTicker(e.Ticker),
			Shares:    e.Shares,
			CostBasis: e.Price,
		}
		if err := p.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("entry %d: %v", i+1, err))
			return
		}
		added = append(added, p)
	}
	if err := s.store.Merge(r.Context(), userID, added); err != nil {
		s.logger.Error().Str("user_id", userID).Err(err).Msg("merge positions failed")
		httpError(w, http.StatusInternalServerError, "failed to store positions")
		return
	}
	s.respondWithData(w, r, userID, nil)
}

// GET /report?user_id=<id>  -> PNG chart document
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	payload, ok := s.buildPayload(w, r, userID)
	if !ok {
		return
	}
	img, err := report.RenderChart(payload)
	if err != nil {
		s.logger.Error().Str("user_id", userID).Err(err).Msg("chart render failed")
		httpError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio_report.png"`)
	_, _ = w.Write(img)
}

func (s *Server) respondWithData(w http.ResponseWriter, r *http.Request, userID string, rowErrors []RowError) {
	payload, ok := s.buildPayload(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Payload: payload, RowErrors: rowErrors})
}

// buildPayload runs the build -> compute -> assemble pipeline, writing the
// error response itself when the build fails.
func (s *Server) buildPayload(w http.ResponseWriter, r *http.Request, userID string) (report.Payload, bool) {
	ctx := r.Context()
	snap, err := s.builder.Build(ctx, userID, s.opts.LookbackDays)
	switch {
	case errors.Is(err, portfolio.ErrNoPositions):
		httpError(w, http.StatusNotFound, "user has no positions")
		return report.Payload{}, false
	case errors.Is(err, portfolio.ErrProviderUnavailable):
		httpError(w, http.StatusBadGateway, "price provider unavailable")
		return report.Payload{}, false
	case err != nil:
		s.logger.Error().Str("user_id", userID).Err(err).Msg("snapshot build failed")
		httpError(w, http.StatusInternalServerError, "failed to build portfolio")
		return report.Payload{}, false
	}

	benchmark, err := s.prices.History(ctx, s.opts.BenchmarkTicker, s.opts.LookbackDays)
	if err != nil {
		// Beta falls back to its documented default without a benchmark.
		s.logger.Warn().Str("ticker", s.opts.BenchmarkTicker).Err(err).Msg("benchmark unavailable")
		benchmark = market.PriceSeries{}
		snap.Warnings = append(snap.Warnings, portfolio.Warning{
			Ticker: s.opts.BenchmarkTicker,
			Reason: "benchmark unavailable: " + err.Error(),
		})
	}

	metrics := portfolio.Compute(snap, s.opts.RiskFreeRate, benchmark)
	forecasts := s.forecastAll(r, snap)
	return report.Assemble(snap, metrics, forecasts), true
}

// forecastAll estimates next-day returns per resolvable ticker. The market
// client's TTL cache makes the repeat history lookups cheap.
func (s *Server) forecastAll(r *http.Request, snap *portfolio.Snapshot) map[string]float64 {
	out := make(map[string]float64)
	for _, v := range snap.Positions {
		if v.CurrentPrice == nil {
			continue
		}
		series, err := s.prices.History(r.Context(), v.Ticker, s.opts.LookbackDays)
		if err != nil {
			continue
		}
		out[v.Ticker] = portfolio.ForecastNextReturn(series)
	}
	return out
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return userID, true
}
