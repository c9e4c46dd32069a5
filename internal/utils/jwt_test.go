// internal/utils/jwt_test.go
package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateJWT(userID, "alice@example.com", "user", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestValidateJWT(t *testing.T) {
	t.Run("rejects garbage", func(t *testing.T) {
		SetJWTSecret("test-secret")
		_, err := ValidateJWT("not.a.token")
		assert.Error(t, err)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		SetJWTSecret("first-secret")
		token, err := GenerateJWT(uuid.New(), "alice@example.com", "user", 1)
		require.NoError(t, err)

		SetJWTSecret("second-secret")
		_, err = ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		SetJWTSecret("test-secret")
		token, err := GenerateJWT(uuid.New(), "alice@example.com", "user", -1)
		require.NoError(t, err)

		_, err = ValidateJWT(token)
		assert.Error(t, err)
	})
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateRefreshToken(userID, 24)
	require.NoError(t, err)

	subject, err := ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), subject)
}
