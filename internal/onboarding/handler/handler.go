package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	consentmodels "alumnus/internal/consent/models"
	"alumnus/internal/onboarding/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/httputil"
	"alumnus/pkg/platform/middleware/request"
	"alumnus/pkg/requestcontext"
)

// Service defines the onboarding operations exposed over HTTP.
type Service interface {
	DiscoverForAccount(ctx context.Context, accountID id.AccountID) ([]models.AlumniMatch, error)
	CreateProfiles(ctx context.Context, accountID id.AccountID, selections []models.Selection) (*models.CreateProfilesResult, error)
	ListProfiles(ctx context.Context, accountID id.AccountID) ([]models.ProfileView, error)
	GrantConsent(ctx context.Context, parentAccountID id.AccountID, childProfileID id.ProfileID) (*models.GrantConsentResult, error)
	RevokeConsent(ctx context.Context, parentAccountID id.AccountID, childProfileID id.ProfileID, reason string) error
	ConsentHistory(ctx context.Context, accountID id.AccountID, childProfileID id.ProfileID) ([]*consentmodels.Record, error)
}

// Handler serves the onboarding and profile endpoints. Every route expects the
// caller's account on the request context.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/onboarding/matches", h.HandleDiscover)
	r.Post("/onboarding/profiles", h.HandleCreateProfiles)
	r.Get("/profiles", h.HandleListProfiles)
	r.Route("/profiles/{profileID}/consent", func(r chi.Router) {
		r.Get("/", h.HandleConsentHistory)
		r.Post("/", h.HandleGrantConsent)
		r.Post("/revoke", h.HandleRevokeConsent)
	})
}

func (h *Handler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	matches, err := h.service.DiscoverForAccount(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "discover alumni failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &MatchesResponse{Matches: matches})
}

func (h *Handler) HandleCreateProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var req CreateProfilesRequest
	if err := httputil.DecodeAndPrepare(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.CreateProfiles(ctx, accountID, req.Selections)
	if err != nil {
		h.logFailure(ctx, "create profiles failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	views, err := h.service.ListProfiles(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "list profiles failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ProfilesResponse{Profiles: views})
}

func (h *Handler) HandleGrantConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, profileID, ok := h.requireProfileTarget(w, r)
	if !ok {
		return
	}

	result, err := h.service.GrantConsent(ctx, accountID, profileID)
	if err != nil {
		h.logFailure(ctx, "grant consent failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, profileID, ok := h.requireProfileTarget(w, r)
	if !ok {
		return
	}
	var req RevokeConsentRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeAndPrepare(w, r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	if err := h.service.RevokeConsent(ctx, accountID, profileID, req.Reason); err != nil {
		h.logFailure(ctx, "revoke consent failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleConsentHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, profileID, ok := h.requireProfileTarget(w, r)
	if !ok {
		return
	}

	records, err := h.service.ConsentHistory(ctx, accountID, profileID)
	if err != nil {
		h.logFailure(ctx, "consent history failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ConsentHistoryResponse{Records: records})
}

func (h *Handler) requireAccount(w http.ResponseWriter, r *http.Request) (id.AccountID, bool) {
	accountID := requestcontext.AccountID(r.Context())
	if accountID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AccountID{}, false
	}
	return accountID, true
}

func (h *Handler) requireProfileTarget(w http.ResponseWriter, r *http.Request) (id.AccountID, id.ProfileID, bool) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return id.AccountID{}, id.ProfileID{}, false
	}
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AccountID{}, id.ProfileID{}, false
	}
	return accountID, profileID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeStorage {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"account_id", requestcontext.AccountID(ctx).String(),
		"error", err,
	)
}
