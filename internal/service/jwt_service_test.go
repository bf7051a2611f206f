package service

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/domain"
)

func testJWTConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-key"
	cfg.JWT.AdminSecret = "test-admin-secret"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = 24 * time.Hour
	cfg.App.Name = "test-service"
	return cfg
}

func createTestJWTService() JWTService {
	return NewUserJWTService(testJWTConfig(), zap.NewNop())
}

func createTestUser() *domain.User {
	return &domain.User{
		ID:       123,
		Username: "testuser",
		Role:     domain.UserRoleUser,
		IsActive: true,
	}
}

func TestJWTService_GenerateTokenPair(t *testing.T) {
	jwtService := createTestJWTService()
	user := createTestUser()

	tokenPair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if tokenPair.AccessToken == "" || tokenPair.RefreshToken == "" {
		t.Fatal("tokens should not be empty")
	}

	claims, err := jwtService.ValidateAccessToken(tokenPair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("Expected UserID %d, got %d", user.ID, claims.UserID)
	}
	if claims.Role != user.Role {
		t.Errorf("Expected Role %s, got %s", user.Role, claims.Role)
	}
	if claims.Type != tokenTypeAccess {
		t.Errorf("Expected Type 'access', got %s", claims.Type)
	}

	refreshClaims, err := jwtService.ValidateRefreshToken(tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken failed: %v", err)
	}
	if refreshClaims.Type != tokenTypeRefresh {
		t.Errorf("Expected Type 'refresh', got %s", refreshClaims.Type)
	}
}

func TestJWTService_ValidateAccessToken_InvalidToken(t *testing.T) {
	jwtService := createTestJWTService()

	testCases := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"invalid format", "invalid.token.format"},
		{"wrong signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0NTY3ODkwIiwibmFtZSI6IkpvaG4gRG9lIiwiaWF0IjoxNTE2MjM5MDIyfQ.invalid"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := jwtService.ValidateAccessToken(tc.token); err != ErrInvalidToken {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWTService_ValidateToken_WrongType(t *testing.T) {
	jwtService := createTestJWTService()

	tokenPair, err := jwtService.GenerateTokenPair(createTestUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := jwtService.ValidateAccessToken(tokenPair.RefreshToken); err == nil {
		t.Error("Expected validation to fail when using refresh token as access token")
	}
	if _, err := jwtService.ValidateRefreshToken(tokenPair.AccessToken); err == nil {
		t.Error("Expected validation to fail when using access token as refresh token")
	}
}

func TestJWTService_UserTokenRejectedByAdmin(t *testing.T) {
	cfg := testJWTConfig()
	userJWT := NewUserJWTService(cfg, zap.NewNop())
	adminJWT := NewAdminJWTService(cfg, zap.NewNop())

	admin := &domain.User{ID: 1, Username: "root", Role: domain.UserRoleAdmin, IsActive: true}
	pair, err := userJWT.GenerateTokenPair(admin)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if _, err := adminJWT.ValidateAccessToken(pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("user-signed token must not pass admin validation, got %v", err)
	}

	// 密钥相同时仍按受众拒绝
	cfg.JWT.AdminSecret = cfg.JWT.Secret
	adminSameSecret := NewAdminJWTService(cfg, zap.NewNop())
	if _, err := adminSameSecret.ValidateAccessToken(pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("audience mismatch should be rejected, got %v", err)
	}
}

func TestJWTService_TokenExpiration(t *testing.T) {
	svc := createTestJWTService().(*jwtService)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tokenPair, err := svc.GenerateTokenPair(createTestUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := svc.ValidateAccessToken(tokenPair.AccessToken); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
	if _, err := svc.ValidateRefreshToken(tokenPair.RefreshToken); err != nil {
		t.Errorf("refresh token should still be valid: %v", err)
	}

	now = now.Add(24 * time.Hour)
	if _, err := svc.ValidateRefreshToken(tokenPair.RefreshToken); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}
