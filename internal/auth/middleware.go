package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-resale/internal/identity"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier turns a bearer token into a user id.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

// SessionVerifier accepts the marketplace's own HS256 session tokens.
type SessionVerifier struct {
	Issuer *identity.TokenIssuer
}

func (v SessionVerifier) Verify(_ context.Context, rawToken string) (string, error) {
	return v.Issuer.Parse(rawToken)
}

// OIDCVerifier accepts ID tokens from an external OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	cfg := &oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""}
	return &OIDCVerifier{verifier: provider.Verifier(cfg)}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims.Sub, nil
}

// Chain tries each verifier in order and returns the first accepted subject.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, rawToken string) (string, error) {
	var lastErr error
	for _, v := range c {
		sub, err := v.Verify(ctx, rawToken)
		if err == nil && sub != "" {
			return sub, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no verifier configured")
	}
	return "", lastErr
}

// Middleware rejects requests without a valid bearer token and stores the
// user id in the request context. onReject writes the error response.
func Middleware(verifier Verifier, onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				onReject(w, r, err)
				return
			}

			sub, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				onReject(w, r, fmt.Errorf("invalid token: %w", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
