// internal/services/auth_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/spacevox/spacevox-backend/internal/config"
	"github.com/spacevox/spacevox-backend/internal/models"
	"github.com/spacevox/spacevox-backend/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrUserNotFound       = errors.New("user not found")
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AuthService struct {
	db          *gorm.DB
	cfg         *config.Config
	notifier    *NotificationService
	googleOAuth *oauth2.Config
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,strong_password"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,e164"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func NewAuthService(db *gorm.DB, cfg *config.Config, notifier *NotificationService) *AuthService {
	var googleOAuth *oauth2.Config
	if cfg.OAuth.GoogleClientID != "" {
		googleOAuth = &oauth2.Config{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	return &AuthService{
		db:          db,
		cfg:         cfg,
		notifier:    notifier,
		googleOAuth: googleOAuth,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if user already exists
	var existingUser models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return nil, ErrEmailTaken
	}

	// Create new user
	user := &models.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Role:        models.UserRoleUser,
		Status:      models.UserStatusActive,
	}

	// Set password
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Save user
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send welcome email (async)
	if s.notifier != nil {
		go func() {
			if err := s.notifier.SendWelcomeEmail(user); err != nil {
				logrus.WithError(err).Warn("Failed to send welcome email")
			}
		}()
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Find user by email
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user.Status == models.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	// OAuth-only accounts have no password to check
	if user.IsOAuthOnly() {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Update last login time
	now := time.Now()
	user.LastLoginAt = &now
	s.db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	return s.issueTokens(&user)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	// Validate refresh token
	userIDStr, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	// Find user
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Check user status
	if user.Status != models.UserStatusActive {
		return nil, ErrAccountSuspended
	}

	return s.issueTokens(&user)
}

// GoogleAuthURL builds the consent-screen redirect for the given anti-CSRF
// state. Returns an error when Google OAuth is not configured.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.googleOAuth == nil {
		return "", errors.New("google oauth is not configured")
	}
	return s.googleOAuth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleCallback exchanges the authorization code, fetches the Google
// profile, and signs the user in, creating or linking the local account as
// needed.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*AuthResponse, error) {
	if s.googleOAuth == nil {
		return nil, errors.New("google oauth is not configured")
	}

	token, err := s.googleOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	info, err := s.fetchGoogleUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	user, err := s.upsertGoogleUser(ctx, info)
	if err != nil {
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, ErrAccountSuspended
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(user).Update("last_login_at", now)

	return s.issueTokens(user)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *AuthService) fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.googleOAuth.Client(ctx, token)

	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode google profile: %w", err)
	}

	return &info, nil
}

func (s *AuthService) upsertGoogleUser(ctx context.Context, info *googleUserInfo) (*models.User, error) {
	var user models.User

	// Returning user
	err := s.db.WithContext(ctx).Where("google_id = ?", info.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Existing password account with the same email gets linked
	err = s.db.WithContext(ctx).Where("email = ?", info.Email).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"google_id": info.ID}
		if user.AvatarURL == "" && info.Picture != "" {
			updates["avatar_url"] = info.Picture
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to link google account: %w", err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Fresh account
	displayName := info.Name
	if displayName == "" {
		displayName = info.Email
	}

	user = models.User{
		Email:       info.Email,
		DisplayName: displayName,
		GoogleID:    &info.ID,
		AvatarURL:   info.Picture,
		Role:        models.UserRoleUser,
		Status:      models.UserStatusActive,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.notifier != nil {
		u := user
		go func() {
			if err := s.notifier.SendWelcomeEmail(&u); err != nil {
				logrus.WithError(err).Warn("Failed to send welcome email")
			}
		}()
	}

	return &user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}
