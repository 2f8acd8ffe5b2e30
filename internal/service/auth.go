package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"socialnet/internal/config"
)

// AuthService issues access tokens. Verification lives in the auth middleware.
type AuthService struct {
	config *config.Config
	now    func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{config: cfg, now: time.Now}
}

// GenerateAccessToken signs an HS256 token carrying the user id.
func (s *AuthService) GenerateAccessToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) ExpiresIn() int {
	return s.config.AccessTokenMaxAge
}

// SecureCookies reports whether the token cookie is restricted to HTTPS.
func (s *AuthService) SecureCookies() bool {
	return s.config.CookieSecure
}
