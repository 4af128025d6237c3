package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-resale/internal/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	sub string
	err error
}

func (s staticVerifier) Verify(context.Context, string) (string, error) {
	return s.sub, s.err
}

func reject(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), http.StatusUnauthorized)
}

func TestMiddleware(t *testing.T) {
	issuer := identity.NewTokenIssuer("secret", time.Hour)
	tok, err := issuer.Issue("user-42")
	require.NoError(t, err)

	var seen string
	h := Middleware(SessionVerifier{Issuer: issuer}, reject)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "user-42", seen)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestChain(t *testing.T) {
	c := Chain{staticVerifier{err: errors.New("not mine")}, staticVerifier{sub: "user-7"}}
	sub, err := c.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-7", sub)

	_, err = Chain{}.Verify(context.Background(), "tok")
	assert.Error(t, err)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	tok, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	req.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(req)
	assert.ErrorIs(t, err, ErrMalformedToken)

	req.Header.Set("Authorization", "Bearer a b")
	_, err = ExtractTokenFromRequest(req)
	assert.ErrorIs(t, err, ErrMalformedToken)

	req.Header.Del("Authorization")
	_, err = ExtractTokenFromRequest(req)
	assert.ErrorIs(t, err, ErrMissingToken)
}
