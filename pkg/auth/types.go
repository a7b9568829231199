package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrMissingToken means the request carried no bearer credential
	ErrMissingToken = errors.New("missing authorization token")

	// ErrInvalidToken means the credential failed verification
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Principal is a verified caller
type Principal struct {
	UserID  int64  `json:"user_id"`
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// IdentityVerifier validates a bearer credential and yields the caller
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	// Parse Bearer token
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}

	return strings.TrimSpace(parts[1]), nil
}

// VerifyRequest extracts the bearer token from r and verifies it
func VerifyRequest(r *http.Request, verifier IdentityVerifier) (*Principal, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(r.Context(), token)
}

// parseUserID converts a claim value into a positive user id. Claims may
// arrive as JSON numbers or numeric strings.
func parseUserID(value interface{}) (int64, error) {
	var id int64
	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrInvalidToken
		}
		id = parsed
	case float64:
		if v != float64(int64(v)) {
			return 0, ErrInvalidToken
		}
		id = int64(v)
	case int64:
		id = v
	default:
		return 0, ErrInvalidToken
	}

	if id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
