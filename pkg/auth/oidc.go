package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures ID token verification against an OpenID provider
type OIDCConfig struct {
	IssuerURL string
	ClientID  string

	// UserIDClaim names the claim holding the numeric user id. Defaults to "sub".
	UserIDClaim string
}

// OIDCVerifier verifies ID tokens issued by an OpenID Connect provider
type OIDCVerifier struct {
	verifier    *oidc.IDTokenVerifier
	userIDClaim string
}

// NewOIDCVerifier discovers the provider and builds a verifier for its keys
func NewOIDCVerifier(ctx context.Context, config OIDCConfig) (*OIDCVerifier, error) {
	if config.IssuerURL == "" || config.ClientID == "" {
		return nil, fmt.Errorf("oidc issuer url and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return newOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: config.ClientID}), config.UserIDClaim), nil
}

// NewOIDCVerifierWithKeySet builds a verifier over a fixed key set, for
// deployments without discovery
func NewOIDCVerifierWithKeySet(config OIDCConfig, keySet oidc.KeySet) *OIDCVerifier {
	verifier := oidc.NewVerifier(config.IssuerURL, keySet, &oidc.Config{ClientID: config.ClientID})
	return newOIDCVerifier(verifier, config.UserIDClaim)
}

func newOIDCVerifier(verifier *oidc.IDTokenVerifier, claim string) *OIDCVerifier {
	if claim == "" {
		claim = "sub"
	}
	return &OIDCVerifier{verifier: verifier, userIDClaim: claim}
}

// Verify validates an ID token
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := parseUserID(claims[v.userIDClaim])
	if err != nil {
		return nil, err
	}

	principal := &Principal{UserID: userID, Subject: idToken.Subject}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	return principal, nil
}
