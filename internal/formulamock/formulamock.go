// Package formulamock is a stand-in formula data provider for local runs and
// tests. Every constant is 1.0 and every iteration count is 2, which yields
// karma 46 and karma level ln(46).
package formulamock

import (
	"context"
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// Route paths; the trailing segment is the user id.
const (
	PathAFormula     = "/v1/formula-data/a-formula/"
	PathRFormula     = "/v1/formula-data/r-formula/"
	PathPostRating   = "/v1/formula-data/post-rating/"
	PathKarmaFormula = "/v1/formula-data/karma-formula/"
	PathKarmaLevel   = "/v1/formula-data/karma-level/"
	PathUpdateInfo   = "/v1/update-info"
)

// Server serves the five formula-data endpoints and records update-info posts.
type Server struct {
	constant   float64
	iterations int
	failures   map[string]int     // path prefix -> forced status
	overrides  map[string]payload // path prefix -> fields replaced or removed (nil value)
	log        logger.Logger

	mu      sync.Mutex
	updates []types.KarmaUpdate
}

type payload map[string]any

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithConstant sets every weight, value and decay result.
func WithConstant(v float64) Option {
	return func(s *Server) { s.constant = v }
}

// WithIterations sets every iteration count.
func WithIterations(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.iterations = n
		}
	}
}

// WithFailure makes the endpoint under prefix answer with status.
func WithFailure(prefix string, status int) Option {
	return func(s *Server) { s.failures[prefix] = status }
}

// WithField overrides one field of the endpoint under prefix. A nil value
// removes the field.
func WithField(prefix, field string, value any) Option {
	return func(s *Server) {
		if s.overrides[prefix] == nil {
			s.overrides[prefix] = payload{}
		}
		s.overrides[prefix][field] = value
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a mock provider.
func New(opts ...Option) *Server {
	s := &Server{
		constant:   1.0,
		iterations: 2,
		failures:   make(map[string]int),
		overrides:  make(map[string]payload),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathAFormula+"{userId}", s.serve(PathAFormula, s.aFormula))
	mux.HandleFunc("GET "+PathRFormula+"{userId}", s.serve(PathRFormula, s.rFormula))
	mux.HandleFunc("GET "+PathPostRating+"{userId}", s.serve(PathPostRating, s.postRating))
	mux.HandleFunc("GET "+PathKarmaFormula+"{userId}", s.serve(PathKarmaFormula, s.karmaFormula))
	mux.HandleFunc("GET "+PathKarmaLevel+"{userId}", s.serve(PathKarmaLevel, s.karmaLevel))
	mux.HandleFunc("POST "+PathUpdateInfo, s.updateInfo)
	return mux
}

// Updates returns the karma updates received so far.
func (s *Server) Updates() []types.KarmaUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.KarmaUpdate(nil), s.updates...)
}

func (s *Server) serve(prefix string, build func(userID string) payload) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, ok := s.failures[prefix]; ok {
			writeJSON(w, status, payload{"error": http.StatusText(status)})
			return
		}
		body := build(r.PathValue("userId"))
		for k, v := range s.overrides[prefix] {
			if v == nil {
				delete(body, k)
				continue
			}
			body[k] = v
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) fill(p payload, floats []string, iters []string) payload {
	for _, k := range floats {
		p[k] = s.constant
	}
	for _, k := range iters {
		p[k] = s.iterations
	}
	return p
}

func (s *Server) aFormula(userID string) payload {
	return s.fill(payload{"user_id": userID, "final_formula_result": nil},
		[]string{"c4", "c5", "c6", "c7", "c8", "c9", "k_j", "Ka_t0", "f_t_tj_result",
			"I_j", "V_j", "F_j", "I_small_j", "V_small_j", "F_small_j"},
		[]string{"impression_sum_iterations", "view_sum_iterations", "unique_impression_sum_iterations",
			"full_view_sum_iterations", "unique_full_view_sum_iterations", "unique_view_sum_iterations"},
	)
}

func (s *Server) rFormula(userID string) payload {
	return s.fill(payload{"user_id": userID, "final_formula_result": nil},
		[]string{"c10", "c11", "c12", "c13", "c14", "r_j", "l_j", "m_j", "s_j", "p_j", "k_j",
			"g_t_tj_result", "y_t_tj_result"},
		[]string{"like_function_iterations_num", "reply_function_iterations_num", "master_class_iterations_num",
			"comment_function_iterations_num", "payment_function_iterations_num"},
	)
}

func (s *Server) postRating(userID string) payload {
	return s.fill(payload{"user_id": userID, "final_formula_result": nil, "A_t_result": nil, "R_t_result": nil},
		[]string{"c1", "c2", "c3", "k_j", "Ka_t0"}, nil)
}

func (s *Server) karmaFormula(userID string) payload {
	return s.fill(payload{"user_id": userID, "final_formula_result": nil, "t_r": nil, "post_rating_function_result": nil},
		[]string{"c15", "p_a", "n_sub", "c_reg", "alpha", "h_t_tr_result", "z_n_result"},
		[]string{"post_rating_sum_iterations"},
	)
}

func (s *Server) karmaLevel(userID string) payload {
	return s.fill(payload{"user_id": userID, "final_formula_result": nil, "K_t": nil},
		[]string{"c16"}, nil)
}

func (s *Server) updateInfo(w http.ResponseWriter, r *http.Request) {
	var upd types.KarmaUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, payload{"error": "invalid JSON"})
		return
	}
	s.mu.Lock()
	s.updates = append(s.updates, upd)
	s.mu.Unlock()

	s.log.Info(context.Background(), "karma update received",
		logger.String("user_id", upd.UserID),
		logger.Float64("karma_value", upd.KarmaValue),
		logger.Float64("karma_lvl_value", upd.KarmaLevelValue),
	)
	writeJSON(w, http.StatusOK, payload{"message": "Data received successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
