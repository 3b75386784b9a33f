package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"portfolioapi/internal/portfolio"
)

// PortfolioStore is the durable user -> positions mapping the handlers
// write through. Writes for one user must be atomic.
type PortfolioStore interface {
	portfolio.PositionStore
	Replace(ctx context.Context, userID string, positions []portfolio.Position) error
	Merge(ctx context.Context, userID string, added []portfolio.Position) error
}

// Options carries the analytics settings the handlers need per request.
type Options struct {
	RiskFreeRate    float64
	BenchmarkTicker string
	LookbackDays    int
}

// Server exposes the portfolio API over HTTP.
type Server struct {
	store   PortfolioStore
	builder *portfolio.Builder
	prices  portfolio.PriceProvider
	opts    Options
	logger  zerolog.Logger
	mux     *http.ServeMux
}

func New(store PortfolioStore, builder *portfolio.Builder, prices portfolio.PriceProvider, opts Options, logger zerolog.Logger) *Server {
	if opts.BenchmarkTicker == "" {
		opts.BenchmarkTicker = "SPY"
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = portfolio.DefaultLookbackDays
	}
	s := &Server{
		store:   store,
		builder: builder,
		prices:  prices,
		opts:    opts,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/data", s.handleData)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/manual-entry", s.handleManualEntry)
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str("request_id", requestID).Interface("panic", rec).Msg("handler panicked")
			httpError(sw, http.StatusInternalServerError, "internal error")
		}
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}()

	s.mux.ServeHTTP(sw, r)
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
