// Package jwttoken issues and validates the HS256 bearer tokens that
// authenticate API callers. The token subject is the caller's 20-byte
// identity; role checks happen later in the capability table, the token only
// proves control of the identity.
package jwttoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

const issuer = "govvault"

// AccessTokenClaims are the claims carried by an API access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation.
type JWTService struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewJWTService(signingKey string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

// GenerateAccessToken issues a token for the given identity.
func (s *JWTService) GenerateAccessToken(subject domain.Address, now time.Time) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        hex.EncodeToString(b),
		},
	})

	return newToken.SignedString(s.signingKey)
}

// ValidateToken verifies the signature and standard claims and returns the
// caller identity from the subject.
func (s *JWTService) ValidateToken(tokenString string) (domain.Address, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Issuer != issuer {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}

	addr, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "token subject is not an identity")
	}
	return addr, nil
}
