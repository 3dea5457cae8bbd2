package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims *Claims
}

func (f fakeVerifier) Validate(string) (*Claims, error) {
	if f.claims == nil {
		return nil, errors.New("bad signature")
	}
	return f.claims, nil
}

func (fakeVerifier) Close() error { return nil }

func TestLegacyTokenRoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "ana@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)

	_, err = ValidateLegacyToken(token, "other")
	assert.Error(t, err)
}

func TestLegacyTokenWithoutExpiry(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "", "s3cret", 0)
	require.NoError(t, err)
	_, err = ValidateLegacyToken(token, "s3cret")
	require.NoError(t, err)

	_, err = IssueLegacyToken("user-1", "", "", time.Hour)
	assert.Error(t, err)
}

func TestResolver(t *testing.T) {
	legacy, err := IssueLegacyToken("user-1", "ana@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		resolver *Resolver
		header   string
		wantID   string
		wantErr  error
	}{
		{"missing", NewResolver(nil, "s3cret"), "", "", ErrMissingToken},
		{"malformed", NewResolver(nil, "s3cret"), "Token abc", "", ErrMalformed},
		{"not configured", NewResolver(nil, ""), "Bearer abc", "", ErrNotConfigured},
		{"legacy", NewResolver(nil, "s3cret"), "Bearer " + legacy, "user-1", nil},
		{"oidc first", NewResolver(fakeVerifier{claims: &Claims{UserID: "oidc-1", PreferredUsername: "ana"}}, "s3cret"), "Bearer " + legacy, "oidc-1", nil},
		{"oidc fails, legacy fallback", NewResolver(fakeVerifier{}, "s3cret"), "Bearer " + legacy, "user-1", nil},
		{"oidc only", NewResolver(fakeVerifier{}, ""), "Bearer " + legacy, "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.resolver.Resolve(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id.UserID)
		})
	}
}

func TestClaimsIdentityUsesPreferredUsername(t *testing.T) {
	id := (&Claims{UserID: "u", PreferredUsername: "ana"}).Identity()
	assert.Equal(t, "ana", id.Name)
}

func discoveryServer(t *testing.T, issuer func(base string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		base := "http://" + r.Host
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   issuer(base),
			"jwks_uri": base + "/oauth/v2/keys",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscover(t *testing.T) {
	srv := discoveryServer(t, func(base string) string { return base })

	doc, err := discover(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, doc.Issuer)
	assert.Equal(t, srv.URL+"/oauth/v2/keys", doc.JWKSURI)
}

func TestDiscoverRejectsForeignIssuer(t *testing.T) {
	srv := discoveryServer(t, func(string) string { return "https://evil.example.com" })

	_, err := discover(context.Background(), srv.Client(), srv.URL)
	assert.ErrorContains(t, err, "does not match")
}

func TestDiscoverMissingDocument(t *testing.T) {
	srv := discoveryServer(t, func(base string) string { return base })

	_, err := discover(context.Background(), srv.Client(), srv.URL+"/tenant")
	assert.ErrorContains(t, err, "status 404")
}
