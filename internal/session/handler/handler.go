package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alumnus/internal/session/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/httputil"
	"alumnus/pkg/platform/middleware/request"
	"alumnus/pkg/requestcontext"
)

// Service defines the session operations exposed over HTTP.
type Service interface {
	SwitchActiveProfile(ctx context.Context, accountID id.AccountID, profileID id.ProfileID) (*models.SwitchResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.SwitchResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/session/active-profile", h.HandleSwitchActiveProfile)
}

// RegisterPublic mounts routes that authenticate with a refresh token
// instead of a bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/session/refresh", h.HandleRefresh)
}

func (h *Handler) HandleSwitchActiveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	var req SwitchProfileRequest
	if err := httputil.DecodeAndPrepare(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.SwitchActiveProfile(ctx, accountID, req.profileID)
	if err != nil {
		h.logFailure(ctx, "switch active profile failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RefreshRequest
	if err := httputil.DecodeAndPrepare(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logFailure(ctx, "refresh failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeStorage {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
}
