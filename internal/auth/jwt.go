package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("auth: missing bearer token")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingSubject = errors.New("auth: missing subject")
	ErrInvalidRole    = errors.New("auth: invalid role")
	ErrForbidden      = errors.New("auth: forbidden")
)

// Claims are the HS256 token claims accepted by the API.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseJWT validates an HS256 token and returns its claims. Tokens must name
// a subject and a known role.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	claims.Role = string(role)
	return claims, nil
}
