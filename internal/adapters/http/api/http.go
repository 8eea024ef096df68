// Package api exposes scoring, stored results and rankings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/posfit/internal/adapters/repository"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/types"
	"github.com/okian/posfit/pkg/logger"
)

const defaultMaxTopLimit = 100

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Score computes a result without storing it.
	Score(ctx context.Context, p model.Player) model.Result

	// Result returns the stored result for a player.
	Result(ctx context.Context, playerID string) (model.Result, error)

	TopN(ctx context.Context, pos position.Position, n int) ([]types.Entry, error)
	Rank(ctx context.Context, pos position.Position, playerID string) (types.Entry, error)
}

// StatsFunc returns a JSON-encodable snapshot of service statistics.
type StatsFunc func(ctx context.Context) any

// Server wires HTTP routes for the API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	scoreHandler     *ScoreHandler
	resultHandler    *ResultHandler
	positionsHandler *PositionsHandler

	logger logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	maxTopLimit int
	logger      logger.Logger
}

// WithMaxTopLimit caps the limit accepted by the ranking route.
func WithMaxTopLimit(n int) ServerOption {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxTopLimit = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsFunc, opts ...ServerOption) *Server {
	o := serverOptions{maxTopLimit: defaultMaxTopLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(stats),
		scoreHandler:     NewScoreHandler(deps),
		resultHandler:    NewResultHandler(deps),
		positionsHandler: NewPositionsHandler(deps, o.maxTopLimit),
		logger:           o.logger,
	}
}

// Router returns a router with every route registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.Use(requestIDMiddleware, MetricsMiddleware, s.loggingMiddleware)

	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/score", s.scoreHandler.HandleScore).Methods(http.MethodPost)
	r.HandleFunc("/players/{id}/positions", s.resultHandler.HandleGetResult).Methods(http.MethodGet)
	r.HandleFunc("/positions/{pos}/top", s.positionsHandler.HandleTop).Methods(http.MethodGet)
	r.HandleFunc("/positions/{pos}/rank/{id}", s.positionsHandler.HandleRank).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError maps domain errors to HTTP status codes.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, position.ErrUnknownPosition):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
