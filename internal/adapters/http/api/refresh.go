package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/mq/queue"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// RefreshHandler handles karma refresh requests.
type RefreshHandler struct {
	deps     RefreshDependencies
	validate *validator.Validate
	logger   logger.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies, v *validator.Validate, l logger.Logger) *RefreshHandler {
	return &RefreshHandler{deps: deps, validate: v, logger: l}
}

// HandleRefresh handles POST /v1/karma/refresh requests. Accepted jobs are
// processed asynchronously; a full queue answers 429 with whatever was
// queued before it filled.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.karma_refresh"
	var req types.RefreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgument", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgument", wrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.EnqueueRefresh(r.Context(), req.UserIDs)
	if err != nil {
		h.logger.Warn(r.Context(), "refresh rejected",
			logger.Int("requested", len(req.UserIDs)),
			logger.Int("accepted", len(res.Accepted)),
			logger.Error(err),
		)
		if errors.Is(err, queue.ErrFull) {
			writeJSON(w, http.StatusTooManyRequests, types.RefreshRejected{
				ErrorResponse:   types.ErrorResponse{ErrorType: "QueueFull", ErrorMessage: wrapKind(op, ErrBackpressure, err).Error()},
				RefreshResponse: res,
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
