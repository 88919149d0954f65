// Package auth provides JWT token generation and validation for the book API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User registers or logs in with email + password
// 2. Server verifies the bcrypt hash and issues a JWT access token
// 3. The client stores the token and sends it on every API call as
//    "Authorization: Bearer <token>"
// 4. Middleware validates the JWT and sets the userID in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store session
// data. All the information needed (userID, expiry) is inside the signed token.
// The signature ensures nobody can tamper with it without the secret key.
//
// There is no revocation list: logout is purely client-side (the client drops
// the token) and a token stays valid server-side until it expires. With a
// 30-day lifetime that is an accepted trade-off for this application.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is how long a login token stays valid.
// Matches the product behavior: users stay signed in for a month.
const AccessTokenTTL = 30 * 24 * time.Hour

// ResetTokenTTL is the lifetime of a password-reset token. Short on purpose:
// the token travels through email, an untrusted channel.
const ResetTokenTTL = time.Hour

const issuer = "booktracker"

// Audience values distinguish access tokens from reset tokens so one can
// never be replayed as the other.
const (
	audienceAccess = "access"
	audienceReset  = "password-reset"
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations — keep it safe.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Issuer, Subject, ExpiresAt, IssuedAt.
//
// We use "sub" (Subject) to store the internal user ID and "aud" (Audience)
// to record what the token is for.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new JWT access token for the given userID.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key for signing
// and verifying. Fine for a single-server deployment.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.generate(userID, audienceAccess, AccessTokenTTL)
}

// GenerateWithDuration creates an access token with a custom expiry.
// Used in tests to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.generate(userID, audienceAccess, d)
}

// GenerateReset creates a short-lived password-reset token for the user.
// The reset flow (email delivery) calls this and puts the token in a link;
// ResetPassword later validates it with ValidateReset.
func (s *TokenService) GenerateReset(userID string) (string, error) {
	return s.generate(userID, audienceReset, ResetTokenTTL)
}

func (s *TokenService) generate(userID, audience string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT access token string.
// Returns the userID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer and audience match (a reset token is NOT a valid access token)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	return s.validate(tokenStr, audienceAccess)
}

// ValidateReset verifies a password-reset token and returns the userID it
// was issued for.
func (s *TokenService) ValidateReset(tokenStr string) (string, error) {
	return s.validate(tokenStr, audienceReset)
}

func (s *TokenService) validate(tokenStr, audience string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HS256
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Translate jwt library errors into cleaner messages
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	userID := c.Subject
	if userID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return userID, nil
}
