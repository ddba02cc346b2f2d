package api

import (
	"net/http"
	"strings"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// KarmaHandler handles karma requests.
type KarmaHandler struct {
	deps   KarmaDependencies
	logger logger.Logger
}

// NewKarmaHandler creates a new karma handler.
func NewKarmaHandler(deps KarmaDependencies, l logger.Logger) *KarmaHandler {
	return &KarmaHandler{deps: deps, logger: l}
}

// HandleGetKarma handles GET /v1/karma/{user_id} requests.
func (h *KarmaHandler) HandleGetKarma(w http.ResponseWriter, r *http.Request) {
	const op = "api.karma"
	id := r.PathValue("user_id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "InvalidArgument", wrapKind(op, ErrBadRequest, nil))
		return
	}

	res, err := h.deps.CalculateForUser(r.Context(), id)
	if err != nil {
		h.logger.Warn(r.Context(), "karma failed", logger.String("user_id", id), logger.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.KarmaUpdate{
		KarmaValue:      res.Karma,
		KarmaLevelValue: res.KarmaLevel,
		UserID:          res.UserID,
	})
}
