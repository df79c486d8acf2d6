package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vjpiles/backend/internal/contextkeys"
	"github.com/vjpiles/backend/internal/domain"
)

// AuthService issues and verifies JWTs and resolves the caller identity.
type AuthService struct {
	jwtSecret string
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: jwtSecret}
}

// IssueToken signs a token for identity valid for ttl.
func (s *AuthService) IssueToken(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity.UserID,
		"email": identity.Email,
		"role":  identity.Role,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the identity it carries.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	identity := &domain.Identity{
		UserID: getClaimString(claims, "sub"),
		Email:  getClaimString(claims, "email"),
		Role:   getClaimString(claims, "role"),
	}
	if identity.UserID == "" {
		return nil, domain.ErrUnauthorized("token has no subject")
	}
	return identity, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CurrentIdentity returns the identity the auth middleware stored in ctx.
func (s *AuthService) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	return contextkeys.Identity(ctx)
}
