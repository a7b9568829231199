// Package auth verifies the identity behind an incoming request.
//
// # Overview
//
// A request carries a bearer credential in its Authorization header. An
// IdentityVerifier turns that credential into a Principal whose UserID is
// the stable numeric id the authorization layer resolves roles for. This
// package never issues credentials.
//
// # Verifiers
//
// JWTVerifier: HMAC-signed tokens with a shared secret
//
//	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{
//		Secret:   []byte(os.Getenv("GLOSSA_JWT_SECRET")),
//		Issuer:   "glossa",
//		Audience: "glossa-admin",
//	})
//
// OIDCVerifier: ID tokens from an OpenID Connect provider
//
//	verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
//		IssuerURL:   "https://accounts.example.com",
//		ClientID:    "glossa",
//		UserIDClaim: "glossa_user_id",
//	})
//
// # Request Flow
//
//	principal, err := auth.VerifyRequest(r, verifier)
//	if errors.Is(err, auth.ErrMissingToken) {
//		// 401
//	}
package auth
