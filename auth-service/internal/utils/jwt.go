package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTUtil struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type Claims struct {
	UserID    string
	Role      string
	Type      string
	ID        string
	ExpiresAt time.Time
}

func NewJWTUtil(secret string, accessTTL, refreshTTL time.Duration) *JWTUtil {
	return &JWTUtil{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (j *JWTUtil) GenerateAccessToken(userID, role string) (string, error) {
	return j.generate(userID, role, TokenAccess, j.accessTTL)
}

func (j *JWTUtil) GenerateRefreshToken(userID, role string) (string, error) {
	return j.generate(userID, role, TokenRefresh, j.refreshTTL)
}

func (j *JWTUtil) generate(userID, role, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"typ":     typ,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
		"jti":     uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ParseToken checks signature and expiry and returns the claims. The caller
// decides which token type it accepts.
func (j *JWTUtil) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(j.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	claims.UserID, _ = mc["user_id"].(string)
	claims.Role, _ = mc["role"].(string)
	claims.Type, _ = mc["typ"].(string)
	claims.ID, _ = mc["jti"].(string)
	if exp, ok := mc["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
