package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-service/internal/domain"
)

func newTestAuthService(t *testing.T, repo *mockUserRepo) *AuthService {
	t.Helper()
	svc, err := NewAuthService(zap.NewNop(), repo, newTestHasher(), newTestJWTService(time.Now().UTC().Truncate(time.Second)))
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password string, verified bool) domain.User {
	t.Helper()
	hash, err := newTestHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo.put(domain.User{Email: email, PasswordHash: hash, IsEmailVerified: verified})
	user, _ := repo.GetByEmail(context.Background(), email)
	return user
}

func TestAuthServiceAuthenticate_Uniform(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(t, repo)
	seedUser(t, repo, "u@x.com", "secret1", true)

	if _, err := svc.Authenticate(context.Background(), "u@x.com", "secret1"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	cases := map[string][2]string{
		"unknown user":   {"nobody@x.com", "secret1"},
		"wrong password": {"u@x.com", "secret2"},
		"case differs":   {"U@x.com", "secret1"},
		"empty password": {"u@x.com", ""},
		"empty email":    {"", "secret1"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), in[0], in[1])
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(t, repo)
	seedUser(t, repo, "pending@x.com", "secret1", false)
	verified := seedUser(t, repo, "ok@x.com", "secret1", true)

	if _, _, err := svc.Login(context.Background(), "pending@x.com", "secret1"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	user, pair, err := svc.Login(context.Background(), "ok@x.com", "secret1")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if user.ID != verified.ID {
		t.Fatalf("unexpected user %+v", user)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("expected refresh to outlive access")
	}
	claims, err := svc.Tokens().Verify(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if id, _ := claims.UserID(); id != verified.ID {
		t.Fatalf("expected subject %d, got %s", verified.ID, claims.Subject)
	}
}

func TestAuthServiceRefresh(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(t, repo)
	user := seedUser(t, repo, "ok@x.com", "secret1", true)

	_, pair, err := svc.Login(context.Background(), "ok@x.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	access, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("expected refresh success, got %v", err)
	}
	claims, err := svc.Tokens().Verify(access.Token, TokenAccess)
	if err != nil {
		t.Fatalf("verify refreshed access: %v", err)
	}
	if claims.Subject != "1" || user.ID != 1 {
		t.Fatalf("expected same subject, got %s", claims.Subject)
	}

	// el refresh token no rota: sigue sirviendo
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh token reusable, got %v", err)
	}

	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token rejected, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage rejected, got %v", err)
	}

	delete(repo.usersByID, user.ID)
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthServiceRefresh_NonNumericSubject(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(t, repo)
	token, _, err := svc.Tokens().Issue("abc", TokenRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthServiceAuthenticate_RehashesLegacy(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(t, repo)
	legacy, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	repo.put(domain.User{Email: "old@x.com", PasswordHash: string(legacy), IsEmailVerified: true})

	user, err := svc.Authenticate(context.Background(), "old@x.com", "secret1")
	if err != nil {
		t.Fatalf("expected legacy login, got %v", err)
	}
	stored := repo.usersByID[user.ID]
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("expected hash upgraded, got %q", stored.PasswordHash)
	}
	if _, err := svc.Authenticate(context.Background(), "old@x.com", "secret1"); err != nil {
		t.Fatalf("expected login with upgraded hash, got %v", err)
	}
}

func TestNewAuthService_RequiresDependencies(t *testing.T) {
	if _, err := NewAuthService(zap.NewNop(), nil, newTestHasher(), newTestJWTService(time.Now())); err == nil {
		t.Fatalf("expected error without repository")
	}
}
