package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	userID := uuid.New()

	token, err := svc.Generate(userID, "priya@example.com", "Priya", "instructor")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "priya@example.com", claims.Email)
	assert.Equal(t, "Priya", claims.Name)
	assert.Equal(t, "instructor", claims.Role)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 24).Generate(uuid.New(), "x@example.com", "X", "student")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 24).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", 24)

	_, err := svc.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1)

	token, err := svc.Generate(uuid.New(), "x@example.com", "X", "student")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
