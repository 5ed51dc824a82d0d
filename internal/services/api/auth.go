package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// AuthConfig enables bearer-token authentication on mutating endpoints.
// A zero value disables authentication.
type AuthConfig struct {
	// Secret is the HMAC signing key for HS256 tokens.
	Secret string
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
}

func (c AuthConfig) enabled() bool {
	return strings.TrimSpace(c.Secret) != ""
}

// authenticate validates the Authorization header against the configured
// signing key. Requests pass untouched when authentication is disabled.
func (s *Server) authenticate(r *http.Request) error {
	if !s.auth.enabled() {
		return nil
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return apperrors.New(apperrors.CodeAPIUnauthenticated, "missing bearer token")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.auth.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.auth.Issuer))
	}
	if s.auth.Audience != "" {
		options = append(options, jwt.WithAudience(s.auth.Audience))
	}

	_, err := jwt.Parse(strings.TrimSpace(token), func(t *jwt.Token) (any, error) {
		return []byte(s.auth.Secret), nil
	}, options...)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAPIUnauthenticated, "invalid bearer token", err)
	}
	return nil
}

// requireAuth wraps a handler with bearer-token validation.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.authenticate(r); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}
