// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacevox/spacevox-backend/internal/utils"
)

func authTestRouter(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", handler, func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "alice@example.com", "user", 1)
	require.NoError(t, err)

	t.Run("accepts a bearer token", func(t *testing.T) {
		r := authTestRouter(t, AuthRequired())
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("accepts a query token for websocket clients", func(t *testing.T) {
		r := authTestRouter(t, AuthRequired())
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		r := authTestRouter(t, AuthRequired())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		r := authTestRouter(t, AuthRequired())
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		utils.SetJWTSecret("other-secret")
		forged, err := utils.GenerateJWT(userID, "alice@example.com", "user", 1)
		require.NoError(t, err)
		utils.SetJWTSecret("test-secret")

		r := authTestRouter(t, AuthRequired())
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("test-secret")

	serve := func(t *testing.T, role string) *httptest.ResponseRecorder {
		t.Helper()
		token, err := utils.GenerateJWT(uuid.New(), "user@example.com", role, 1)
		require.NoError(t, err)

		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, serve(t, "admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(t, "user").Code)
}

func TestOptionalAuth(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/open", OptionalAuth(), func(c *gin.Context) {
		if id, ok := c.Get("user_id"); ok {
			c.JSON(http.StatusOK, gin.H{"user_id": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": nil})
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "null")
	})

	t.Run("a valid token identifies the caller", func(t *testing.T) {
		userID := uuid.New()
		token, err := utils.GenerateJWT(userID, "alice@example.com", "user", 1)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("a bad token degrades to anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "null")
	})
}
