package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gosuda/boardsync/internal/domain"
)

// Claims holds the JWT token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

const issuer = "boardsync"

var (
	// ErrInvalidToken is returned when a JWT cannot be parsed or verified.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken is returned when a well-formed JWT is past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")
)

// IssueToken creates a signed HS256 token for the identity. Token issuance
// belongs to the account service; this exists for development seeding and
// tests.
func IssueToken(secret string, id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		UserID:   id.ID.String(),
		Username: id.Username,
		Email:    id.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT token string. Expired tokens fail
// with ErrExpiredToken, everything else with ErrInvalidToken.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrExpiredToken)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	return claims, nil
}
