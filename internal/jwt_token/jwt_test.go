package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

func TestRoundTrip(t *testing.T) {
	svc := NewJWTService("test-signing-key", time.Hour)
	subject := domain.Address{0x01, 0x02}

	token, err := svc.GenerateAccessToken(subject, time.Now())
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", time.Hour)

	token, err := svc.GenerateAccessToken(domain.Address{0x01}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestWrongKeyRejected(t *testing.T) {
	issuing := NewJWTService("key-a", time.Hour)
	validating := NewJWTService("key-b", time.Hour)

	token, err := issuing.GenerateAccessToken(domain.Address{0x01}, time.Now())
	require.NoError(t, err)

	_, err = validating.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestGarbageRejected(t *testing.T) {
	svc := NewJWTService("test-signing-key", time.Hour)
	_, err := svc.ValidateToken("not-a-jwt")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
