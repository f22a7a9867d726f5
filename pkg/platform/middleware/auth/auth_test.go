package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"dunning/pkg/requestcontext"
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
	operator := uuid.New()

	newHandler := func(v JWTValidator) (http.Handler, *string) {
		var seen string
		h := RequireAuth(v, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.OperatorID(r.Context()).String()
			w.WriteHeader(http.StatusNoContent)
		}))
		return h, &seen
	}

	t.Run("missing header", func(t *testing.T) {
		h, _ := newHandler(stubValidator{})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Missing or invalid Authorization header")
	})

	t.Run("invalid token", func(t *testing.T) {
		h, _ := newHandler(stubValidator{err: errors.New("bad signature")})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token sets operator", func(t *testing.T) {
		h, seen := newHandler(stubValidator{claims: &JWTClaims{OperatorID: operator.String()}})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, operator.String(), *seen)
	})
}
