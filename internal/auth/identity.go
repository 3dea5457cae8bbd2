package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingToken  = errors.New("missing authorization header")
	ErrMalformed     = errors.New("invalid authorization header format")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotConfigured = errors.New("authentication not configured")
)

// Identity is the verified caller of a request
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Resolver verifies bearer tokens, trying the OIDC key set first and the
// legacy HMAC secret second.
type Resolver struct {
	verifier TokenVerifier
	secret   string
}

// NewResolver creates a resolver. Either source may be empty.
func NewResolver(verifier TokenVerifier, secret string) *Resolver {
	return &Resolver{verifier: verifier, secret: secret}
}

// Resolve reads the Authorization header value.
func (r *Resolver) Resolve(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return nil, ErrMalformed
	}
	token := parts[1]

	if r.verifier == nil && r.secret == "" {
		return nil, ErrNotConfigured
	}

	if r.verifier != nil {
		if claims, err := r.verifier.Validate(token); err == nil {
			return claims.Identity(), nil
		}
	}

	if r.secret != "" {
		if claims, err := ValidateLegacyToken(token, r.secret); err == nil {
			return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
		}
	}

	return nil, ErrInvalidToken
}
