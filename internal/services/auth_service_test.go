// internal/services/auth_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacevox/spacevox-backend/internal/config"
	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	utils.SetJWTSecret("test-secret")
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
	}
	return NewAuthService(newTestDB(t), cfg, nil)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("issues tokens for a new account", func(t *testing.T) {
		svc := newAuthService(t)

		resp, err := svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "Str0ng#Pass",
			DisplayName: "Alice",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, models.UserRoleUser, resp.User.Role)

		claims, err := utils.ValidateJWT(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID.String(), claims.UserID)
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		svc := newAuthService(t)

		_, err := svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "Str0ng#Pass",
			DisplayName: "Alice",
		})
		require.NoError(t, err)

		_, err = svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "An0ther#Pass",
			DisplayName: "Imposter",
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("rejects a weak password", func(t *testing.T) {
		svc := newAuthService(t)

		_, err := svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "password",
			DisplayName: "Alice",
		})
		assert.Error(t, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, svc *AuthService) *models.User {
		resp, err := svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "Str0ng#Pass",
			DisplayName: "Alice",
		})
		require.NoError(t, err)
		return resp.User
	}

	t.Run("valid credentials", func(t *testing.T) {
		svc := newAuthService(t)
		register(t, svc)

		resp, err := svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "Str0ng#Pass"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc := newAuthService(t)
		register(t, svc)

		_, err := svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "Wr0ng#Pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc := newAuthService(t)

		_, err := svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "Str0ng#Pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("suspended account", func(t *testing.T) {
		svc := newAuthService(t)
		user := register(t, svc)
		require.NoError(t, svc.db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("status", models.UserStatusSuspended).Error)

		_, err := svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "Str0ng#Pass"})
		assert.ErrorIs(t, err, ErrAccountSuspended)
	})

	t.Run("oauth-only account has no password to check", func(t *testing.T) {
		svc := newAuthService(t)
		googleID := "google-123"
		user := &models.User{
			Email:       "oauth@example.com",
			DisplayName: "OAuth Only",
			GoogleID:    &googleID,
			Role:        models.UserRoleUser,
			Status:      models.UserStatusActive,
		}
		require.NoError(t, svc.db.Create(user).Error)

		_, err := svc.Login(ctx, &LoginRequest{Email: "oauth@example.com", Password: "Str0ng#Pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("mints a fresh pair", func(t *testing.T) {
		svc := newAuthService(t)
		resp, err := svc.Register(ctx, &RegisterRequest{
			Email:       "alice@example.com",
			Password:    "Str0ng#Pass",
			DisplayName: "Alice",
		})
		require.NoError(t, err)

		refreshed, err := svc.RefreshToken(ctx, resp.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)
		assert.Equal(t, resp.User.ID, refreshed.User.ID)
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		svc := newAuthService(t)

		_, err := svc.RefreshToken(ctx, "not-a-token")
		assert.Error(t, err)
	})
}
