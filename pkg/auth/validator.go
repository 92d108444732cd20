package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// CredentialValidator checks that a live access/refresh token pair belongs
// to an authenticated principal. This service never issues primary
// credentials; it only verifies and forwards them.
type CredentialValidator interface {
	Validate(ctx context.Context, accessToken, refreshToken string) (uuid.UUID, error)
}

// JWTValidator validates access tokens issued by the primary identity
// service (HS256 with a shared secret). The refresh token is opaque here:
// only its presence is required, rotation and revocation stay with the
// issuer.
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a validator for tokens signed with secret. If
// issuer is non-empty the token's iss claim must match.
func NewJWTValidator(secret []byte, issuer string) *JWTValidator {
	return &JWTValidator{secret: secret, issuer: issuer}
}

// Validate implements CredentialValidator.
func (v *JWTValidator) Validate(ctx context.Context, accessToken, refreshToken string) (uuid.UUID, error) {
	if accessToken == "" || refreshToken == "" {
		return uuid.Nil, domain.ErrInvalidCredentials
	}
	return v.ValidateAccess(accessToken)
}

// ValidateAccess verifies an access token on its own and returns the subject
// user ID. Any parse, signature, expiry, issuer or subject failure yields
// domain.ErrInvalidCredentials.
func (v *JWTValidator) ValidateAccess(tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, domain.ErrInvalidCredentials
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, domain.ErrInvalidCredentials
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidCredentials
	}
	return userID, nil
}
