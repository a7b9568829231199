package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures HMAC token verification
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string

	// UserIDClaim names the claim holding the numeric user id. Defaults to "sub".
	UserIDClaim string

	// Leeway tolerates clock skew on exp/nbf/iat
	Leeway time.Duration
}

// JWTVerifier verifies HS256/HS384/HS512 signed tokens
type JWTVerifier struct {
	secret      []byte
	userIDClaim string
	parser      *jwt.Parser
}

// NewJWTVerifier creates a new JWT verifier
func NewJWTVerifier(config JWTConfig) (*JWTVerifier, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	claim := config.UserIDClaim
	if claim == "" {
		claim = "sub"
	}

	return &JWTVerifier{
		secret:      config.Secret,
		userIDClaim: claim,
		parser:      jwt.NewParser(opts...),
	}, nil
}

// Verify parses and validates a token
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := parseUserID(claims[v.userIDClaim])
	if err != nil {
		return nil, err
	}

	principal := &Principal{UserID: userID}
	if sub, err := claims.GetSubject(); err == nil {
		principal.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	return principal, nil
}
