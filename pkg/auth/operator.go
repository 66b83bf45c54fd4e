package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredToken indicates the operator token has expired
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidToken indicates the operator token failed validation
	ErrInvalidToken = errors.New("invalid token")
)

// OperatorClaims are the JWT claims carried by an operator token. Operators
// are the humans allowed to trigger manual lifecycle transitions.
type OperatorClaims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

// OperatorValidator validates operator bearer tokens for privileged routes
type OperatorValidator struct {
	secretKey []byte
	issuer    string
}

// NewOperatorValidator creates a validator for HS256 operator tokens
func NewOperatorValidator(secretKey, issuer string) (*OperatorValidator, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("operator secret key is required")
	}
	return &OperatorValidator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}, nil
}

// ValidateToken parses and validates an operator token, returning its claims
func (v *OperatorValidator) ValidateToken(tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secretKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.OperatorID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateOperatorToken mints an operator token; used by the CLI tooling and
// by tests.
func GenerateOperatorToken(secretKey, issuer, operatorID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}
