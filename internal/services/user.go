package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pgxlib "github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
	"pair-collection-backend/internal/repository"
)

const jwtExpDays = 365

// UserService handles identity, auth tokens and device registration
type UserService struct {
	userRepo  *repository.UserRepository
	tokenRepo *repository.DeviceTokenRepository
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(userRepo *repository.UserRepository, tokenRepo *repository.DeviceTokenRepository, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtSecret: jwtSecret,
	}
}

// Identity carries the fields supplied by the auth provider
type Identity struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// EnsureUser creates the user record on first authentication, or refreshes
// the identity fields without touching couple_id or pending_invite_code.
func (s *UserService) EnsureUser(ctx context.Context, ident Identity) (*models.User, error) {
	uid := ident.UID
	if uid == "" {
		uid = uuid.New().String()
	}

	user, err := s.userRepo.GetByID(ctx, uid)
	if err == nil {
		if err := s.userRepo.UpdateProfile(ctx, uid, ident.DisplayName, ident.Email, ident.PhotoURL); err != nil {
			return nil, err
		}
		user.DisplayName = ident.DisplayName
		user.Email = ident.Email
		user.PhotoURL = ident.PhotoURL
		return user, nil
	}
	if !errors.Is(err, pgxlib.ErrNoRows) {
		return nil, err
	}

	user = &models.User{
		ID:             uid,
		DisplayName:    ident.DisplayName,
		Email:          ident.Email,
		PhotoURL:       ident.PhotoURL,
		NotifyNewItems: true,
		NotifyStatus:   true,
		NotifyComments: true,
		CreatedAt:      time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by id
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgxlib.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// RequireCouple returns the user's couple id or ErrNoCouple
func (s *UserService) RequireCouple(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.CoupleID == nil {
		return "", ErrNoCouple
	}
	return *user.CoupleID, nil
}

// RegisterDeviceToken records a push delivery address for the user
func (s *UserService) RegisterDeviceToken(ctx context.Context, userID, token, platform string) error {
	if token == "" {
		return ErrTokenRequired
	}
	if platform == "" {
		platform = "ios"
	}
	return s.tokenRepo.Upsert(ctx, &models.DeviceToken{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		CreatedAt: time.Now(),
	})
}

// RemoveDeviceToken drops a push delivery address for the user
func (s *UserService) RemoveDeviceToken(ctx context.Context, userID, token string) error {
	return s.tokenRepo.Delete(ctx, userID, token)
}

// UpdateNotificationPreferences updates the user's push preference flags
func (s *UserService) UpdateNotificationPreferences(ctx context.Context, userID string, newItems, status, comments bool) error {
	return s.userRepo.UpdateNotificationPreferences(ctx, userID, newItems, status, comments)
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}
