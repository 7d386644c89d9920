package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// TokenVerifier resolves the member email asserted by a bearer token.
// Verification failures are returned as errors, never panics.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (email string, err error)
}

// IdentityVerifier validates member tokens issued by the publisher. Tokens
// are RS512-signed; public keys come from the publisher's JWKS endpoint and
// are re-fetched automatically when an unknown key id appears, so key
// rotation does not strand verification.
type IdentityVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIdentityVerifier creates a verifier for tokens issued by issuer with
// keys published at jwksURL. ctx bounds the lifetime of background key
// fetches.
func NewIdentityVerifier(ctx context.Context, issuer, jwksURL string) *IdentityVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{
		SkipClientIDCheck:    true,
		SupportedSigningAlgs: []string{"RS512"},
	})
	return &IdentityVerifier{verifier: verifier}
}

// Verify checks the token's signature, issuer and expiry and returns the
// subject claim, which the publisher populates with the member's email.
func (v *IdentityVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}
	if token.Subject == "" {
		return "", fmt.Errorf("token has no subject claim")
	}
	return token.Subject, nil
}
