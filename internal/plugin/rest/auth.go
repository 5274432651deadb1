package rest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner mints short-lived HS256 bearer tokens for outgoing requests.
type TokenSigner struct {
	secret   []byte
	issuer   string
	subject  string
	tokenTTL time.Duration
	now      func() time.Time
}

// NewTokenSigner creates a signer. An empty issuer or subject is omitted
// from the claims.
func NewTokenSigner(secret, issuer, subject string, tokenTTL time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:   []byte(secret),
		issuer:   issuer,
		subject:  subject,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Sign returns a signed token. requestID is carried in the jti claim.
func (s *TokenSigner) Sign(requestID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.subject,
		ID:        requestID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses a token signed with the same secret and returns its claims.
func (s *TokenSigner) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
