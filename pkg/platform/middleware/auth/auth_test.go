package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "alumnus/pkg/domain"
	"alumnus/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	accountID := id.NewAccountID()
	profileID := id.NewProfileID()

	var gotAccount id.AccountID
	var gotProfile id.ProfileID
	var hasProfile bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = requestcontext.AccountID(r.Context())
		gotProfile, hasProfile = requestcontext.ActiveProfileID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(v JWTValidator, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/profiles", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		RequireAuth(v, logger)(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing header", func(t *testing.T) {
		rec := serve(stubValidator{}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := serve(stubValidator{err: errors.New("bad signature")}, "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired token")
	})

	t.Run("account scoped token", func(t *testing.T) {
		hasProfile = false
		rec := serve(stubValidator{claims: &JWTClaims{AccountID: accountID.String()}}, "Bearer abc")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, accountID, gotAccount)
		assert.False(t, hasProfile)
	})

	t.Run("profile scoped token", func(t *testing.T) {
		rec := serve(stubValidator{claims: &JWTClaims{AccountID: accountID.String(), ProfileID: profileID.String()}}, "Bearer abc")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, hasProfile)
		assert.Equal(t, profileID, gotProfile)
	})

	t.Run("malformed account claim", func(t *testing.T) {
		rec := serve(stubValidator{claims: &JWTClaims{AccountID: "nope"}}, "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
