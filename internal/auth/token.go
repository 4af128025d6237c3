package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingToken   = errors.New("authorization header is missing")
	ErrMalformedToken = errors.New("authorization header format must be 'Bearer {token}'")
)

// ExtractTokenFromRequest returns the bearer token of the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", ErrMalformedToken
	}
	return token, nil
}
