// internal/router/router_test.go
package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spacevox/spacevox-backend/internal/config"
	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/ws"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t  *testing.T
	r  *gin.Engine
	db *gorm.DB
	ip string
}

// Each server gets its own client IP so the per-IP rate limiters, which
// are shared across the package, never bleed between tests.
var nextTestIP uint32

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Product{},
		&models.ProductImage{},
		&models.BuyerInterest{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.AuditLog{},
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX idx_buyer_interests_active_position ON buyer_interests(product_id, position) WHERE status = 'active' AND deleted_at IS NULL",
	).Error)

	cfg := &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Queue: config.QueueConfig{
			SweepInterval:  30,
			JoinRateLimit:  100,
			JoinRateWindow: 60,
		},
		Redis: config.RedisConfig{ListingCacheTTL: 60},
	}

	hub := ws.NewHub()
	go hub.Run()

	r, _ := Initialize(db, nil, hub, cfg)
	ip := fmt.Sprintf("10.1.%d.1", atomic.AddUint32(&nextTestIP, 1))
	return &testServer{t: t, r: r, db: db, ip: ip}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiEnvelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = s.ip + ":54321"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	var env apiEnvelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *testServer) register(email string) string {
	s.t.Helper()

	w, env := s.do(http.MethodPost, "/v1/auth/register", "", gin.H{
		"email":        email,
		"password":     "Str0ng#Pass",
		"display_name": "Test Seller",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

// Walks the primary flow: a seller lists an item, shares a link, an
// anonymous buyer joins the queue, and the seller approves the pickup.
func TestPickupFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register("seller@example.com")

	// Seller creates a listing.
	w, env := s.do(http.MethodPost, "/v1/listings", token, gin.H{
		"title": "Moving-out sale",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Listing models.Listing `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	listing := created.Listing
	require.NotEmpty(t, listing.ShareKey)

	// Seller adds a product to it.
	w, env = s.do(http.MethodPost, "/v1/products", token, gin.H{
		"listing_id":  listing.ID,
		"title":       "Walnut bookshelf",
		"price_cents": 4500,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var createdProduct struct {
		Product models.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &createdProduct))
	product := createdProduct.Product

	// Anyone can open the shared listing.
	w, env = s.do(http.MethodGet, "/v1/listings/shared/"+listing.ShareKey, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sharedResp struct {
		Listing struct {
			OwnerName string           `json:"owner_name"`
			Products  []models.Product `json:"products"`
		} `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sharedResp))
	require.Len(t, sharedResp.Listing.Products, 1)

	// An anonymous buyer joins the queue.
	w, env = s.do(http.MethodPost, "/v1/buyer-interests", "", gin.H{
		"product_id":  product.ID,
		"buyer_name":  "Alice",
		"phone":       "+15551230001",
		"pickup_time": time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var joined struct {
		Interest models.BuyerInterest `json:"interest"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	interest := joined.Interest
	require.NotNil(t, interest.Position)
	assert.Equal(t, 0, *interest.Position)

	// The same buyer cannot join twice.
	w, _ = s.do(http.MethodPost, "/v1/buyer-interests", "", gin.H{
		"product_id":  product.ID,
		"buyer_name":  "Alice",
		"phone":       "+15551230001",
		"pickup_time": time.Now().Add(2 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// The seller sees the queue; other accounts do not.
	stranger := s.register("stranger@example.com")
	w, _ = s.do(http.MethodGet, fmt.Sprintf("/v1/products/%s/buyer-interests", product.ID), stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w, env = s.do(http.MethodGet, fmt.Sprintf("/v1/products/%s/buyer-interests", product.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var queue struct {
		Interests []models.BuyerInterest `json:"interests"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &queue))
	require.Len(t, queue.Interests, 1)

	// And approves the pickup.
	w, env = s.do(http.MethodPost, fmt.Sprintf("/v1/buyer-interests/%s/approve", interest.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved struct {
		Interest models.BuyerInterest `json:"interest"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, models.InterestStatusCompleted, approved.Interest.Status)
	assert.Nil(t, approved.Interest.Position)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodPost, "/v1/listings", "", gin.H{"title": "No auth"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	token := s.register("user@example.com")

	w, _ := s.do(http.MethodGet, "/v1/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// The admin queue listing sweeps overdue entries before responding, so it
// never reports a stale active entry whose pickup window has passed.
func TestAdminInterestListSweeps(t *testing.T) {
	s := newTestServer(t)
	s.register("admin@example.com")
	require.NoError(t, s.db.Model(&models.User{}).
		Where("email = ?", "admin@example.com").
		Update("role", models.UserRoleAdmin).Error)

	// Log in again so the token carries the admin role.
	w, env := s.do(http.MethodPost, "/v1/auth/login", "", gin.H{
		"email":    "admin@example.com",
		"password": "Str0ng#Pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	var admin models.User
	require.NoError(t, s.db.First(&admin, "email = ?", "admin@example.com").Error)

	product := models.Product{
		OwnerID:    admin.ID,
		Title:      "Road bike",
		PriceCents: 12000,
		Status:     models.ProductStatusActive,
	}
	require.NoError(t, s.db.Create(&product).Error)

	pos := 0
	interest := models.BuyerInterest{
		ProductID:  product.ID,
		BuyerName:  "Alice",
		Phone:      "+15551230001",
		PickupTime: time.Now().Add(-time.Hour),
		Status:     models.InterestStatusActive,
		Position:   &pos,
	}
	require.NoError(t, s.db.Create(&interest).Error)

	w, env = s.do(http.MethodGet, "/v1/buyer-interests", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var interests []models.BuyerInterest
	require.NoError(t, json.Unmarshal(env.Data, &interests))
	require.Len(t, interests, 1)
	assert.Equal(t, models.InterestStatusMissed, interests[0].Status)
	assert.Nil(t, interests[0].Position)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
