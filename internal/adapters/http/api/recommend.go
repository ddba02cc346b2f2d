package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// userID accepts a JSON string or number. Numbers are stored in their
// shortest decimal form so 1, 1.0 and 1e0 name the same user; integer
// literals are kept verbatim to preserve ids past float64 precision.
type userID string

func (u *userID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = userID(s)
		return nil
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("user_id must be a string or a number, got %s", b)
		}
		if bytes.ContainsAny(b, ".eE") {
			*u = userID(strconv.FormatFloat(f, 'f', -1, 64))
			return nil
		}
		*u = userID(b)
		return nil
	}
}

// recommendRequest mirrors the OpenAPI schema for POST /v1/recommend.
type recommendRequest struct {
	UserID       userID `json:"user_id" validate:"required"`
	UserColumn   string `json:"user_column_name" validate:"required"`
	ItemColumn   string `json:"item_column_name" validate:"required"`
	RatingColumn string `json:"rating_column_name" validate:"required"`
	ResponseSize int    `json:"response_size" validate:"gt=0"`
	Algo         string `json:"algo" validate:"omitempty,oneof=KNN SVD knn svd"`
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps        RecommendDependencies
	validate    *validator.Validate
	defaultAlgo string
	logger      logger.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies, v *validator.Validate, defaultAlgo string, l logger.Logger) *RecommendHandler {
	return &RecommendHandler{deps: deps, validate: v, defaultAlgo: defaultAlgo, logger: l}
}

// HandleRecommend handles POST /v1/recommend requests. Each result row is
// keyed by the requested column names, the rating column carrying the
// karma-weighted score.
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"
	var req recommendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgument", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgument", wrapKind(op, ErrBadRequest, err))
		return
	}
	algo := req.Algo
	if algo == "" {
		algo = h.defaultAlgo
	}

	items, err := h.deps.GetRecommendations(r.Context(), recommend.Request{
		UserID:       string(req.UserID),
		UserColumn:   req.UserColumn,
		ItemColumn:   req.ItemColumn,
		RatingColumn: req.RatingColumn,
		N:            req.ResponseSize,
		Algorithm:    algo,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "recommend failed", logger.String("user_id", string(req.UserID)), logger.Error(err))
		writeDomainError(w, err)
		return
	}

	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, map[string]any{
			req.UserColumn:   string(req.UserID),
			req.ItemColumn:   it.ItemID,
			req.RatingColumn: it.Score,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}
