// internal/handlers/interest_test.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/spacevox/spacevox-backend/internal/services"
)

func TestInterestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewInterestHandler(nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing product", services.ErrProductNotFound, http.StatusNotFound},
		{"duplicate contact", services.ErrDuplicateContact, http.StatusConflict},
		{"inactive product", services.ErrProductNotActive, http.StatusBadRequest},
		{"not the owner", services.ErrNotProductOwner, http.StatusForbidden},
		{"wrapped sentinel", fmt.Errorf("database error: %w", services.ErrInterestNotFound), http.StatusNotFound},
		{"unexpected failure", errors.New("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			h.respondError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// Infrastructure failures must not leak their details to the client.
func TestInterestErrorMappingHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewInterestHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.respondError(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
