package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tattoo-app/auth-service/internal/models"
	"tattoo-app/auth-service/internal/utils"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
	"tattoo-app/pkg/validation"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
}

// Sessions holds the logout blacklist and the profile cache.
type Sessions interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	CachedUser(ctx context.Context, userID string) (*identity.User, error)
	CacheUser(ctx context.Context, u identity.User, ttl time.Duration) error
}

type AuthService struct {
	userRepo UserRepository
	jwtUtil  *utils.JWTUtil
	sessions Sessions
}

func NewAuthService(userRepo UserRepository, jwtUtil *utils.JWTUtil, sessions Sessions) *AuthService {
	return &AuthService{userRepo: userRepo, jwtUtil: jwtUtil, sessions: sessions}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     req.Email,
		Password:  req.Password,
		Role:      identity.Role(req.Role),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] Registered %s as %s", created.ID.Hex(), created.Role)
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	user, err := s.userRepo.FindUserByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := user.ComparePassword(password); err != nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid credentials")
	}

	access, err := s.jwtUtil.GenerateAccessToken(user.ID.Hex(), string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtUtil.GenerateRefreshToken(user.ID.Hex(), string(user.Role))
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         user.Role,
		Name:         user.Name,
		UserID:       user.ID.Hex(),
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(ctx, refreshToken, utils.TokenRefresh)
	if err != nil {
		return "", err
	}
	return s.jwtUtil.GenerateAccessToken(claims.UserID, claims.Role)
}

// Validate accepts only live access tokens.
func (s *AuthService) Validate(ctx context.Context, token string) (identity.Caller, error) {
	claims, err := s.parse(ctx, token, utils.TokenAccess)
	if err != nil {
		return identity.Caller{}, err
	}
	return identity.Caller{ID: claims.UserID, Role: identity.Role(claims.Role)}, nil
}

// Logout blacklists the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtUtil.ParseToken(token)
	if err != nil {
		return apperr.New(apperr.ErrUnauthorized, "invalid or expired token")
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.sessions.Revoke(ctx, claims.ID, ttl)
}

func (s *AuthService) parse(ctx context.Context, token, typ string) (*utils.Claims, error) {
	claims, err := s.jwtUtil.ParseToken(token)
	if err != nil || claims.Type != typ {
		return nil, apperr.New(apperr.ErrUnauthorized, "invalid or expired token")
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		// без redis отозванный токен не отличить от живого
		return nil, err
	}
	if revoked {
		return nil, apperr.New(apperr.ErrUnauthorized, "token revoked")
	}
	if !identity.Role(claims.Role).Valid() {
		return nil, apperr.New(apperr.ErrUnauthorized, "token carries unknown role")
	}
	return claims, nil
}

// GetUser serves both the profile endpoint and the internal directory.
func (s *AuthService) GetUser(ctx context.Context, id string) (*identity.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	}

	if cached, err := s.sessions.CachedUser(ctx, id); err == nil {
		return cached, nil
	}

	user, err := s.userRepo.GetUserByID(ctx, oid)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	public := user.Public()
	if err := s.sessions.CacheUser(ctx, public, 5*time.Minute); err != nil {
		log.Printf("[CACHE] Failed to cache user profile: %v", err)
	}
	return &public, nil
}
