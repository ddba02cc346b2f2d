// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/mq/queue"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendDependencies
	KarmaDependencies
	RefreshDependencies
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimit limits each client IP to requests per window on the /v1
// routes. A non-positive value disables limiting.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateRequests = requests
		s.rateWindow = window
	}
}

// WithDefaultAlgorithm sets the algorithm used when a request omits "algo".
func WithDefaultAlgorithm(algo string) Option {
	return func(s *Server) {
		if algo != "" {
			s.defaultAlgo = algo
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	recommendHandler *RecommendHandler
	karmaHandler     *KarmaHandler
	refreshHandler   *RefreshHandler

	rateRequests int
	rateWindow   time.Duration
	defaultAlgo  string
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		rateWindow:  time.Minute,
		defaultAlgo: "KNN",
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.recommendHandler = NewRecommendHandler(deps, v, s.defaultAlgo, s.logger)
	s.karmaHandler = NewKarmaHandler(deps, s.logger)
	s.refreshHandler = NewRefreshHandler(deps, v, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	limit := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if s.rateRequests > 0 {
		limiter := httprate.Limit(s.rateRequests, s.rateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, "RateLimited", ErrBackpressure)
			}),
		)
		limit = func(h http.HandlerFunc) http.HandlerFunc { return limiter(h).ServeHTTP }
	}

	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/recommend", MetricsMiddleware(limit(s.recommendHandler.HandleRecommend), "recommend"))
	mux.HandleFunc("GET /v1/karma/{user_id}", MetricsMiddleware(limit(s.karmaHandler.HandleGetKarma), "karma"))
	mux.HandleFunc("POST /v1/karma/refresh", MetricsMiddleware(limit(s.refreshHandler.HandleRefresh), "karma_refresh"))
}

// Handler returns mux wrapped in the request-id middleware.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return RequestIDMiddleware(mux, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errorType string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{ErrorType: errorType, ErrorMessage: msg})
}

// writeDomainError maps a failed operation to a status and error_type:
// invalid arguments are the caller's fault, everything else means the
// service could not produce a result right now.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(errs.KindOf(err), errs.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, errs.Name(err), err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "QueueFull", wrapKind("api", ErrBackpressure, err))
	default:
		writeError(w, http.StatusServiceUnavailable, errs.Name(err), err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// RecommendDependencies serves POST /v1/recommend.
type RecommendDependencies interface {
	GetRecommendations(ctx context.Context, req recommend.Request) ([]model.ScoredItem, error)
}

// KarmaDependencies serves GET /v1/karma/{user_id}.
type KarmaDependencies interface {
	CalculateForUser(ctx context.Context, userID string) (model.KarmaResult, error)
}

// RefreshDependencies serves POST /v1/karma/refresh.
type RefreshDependencies interface {
	EnqueueRefresh(ctx context.Context, userIDs []string) (types.RefreshResponse, error)
}
