package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/repository"
)

// AuthService resuelve login y refresh sobre el store de usuarios.
type AuthService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	hasher    PasswordHasher
	tokens    *JWTService
	dummyHash string
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *JWTService) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil || hasher == nil || tokens == nil {
		return nil, errNotConfigured
	}
	// se compara contra dummyHash cuando el email no existe
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	return &AuthService{
		logger:    logger,
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

// Authenticate no distingue usuario inexistente de password incorrecto.
func (s *AuthService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Verify(password, s.dummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, &user, password)
	}
	return user, nil
}

func (s *AuthService) rehash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("password rehash persist failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return
	}
	user.PasswordHash = hash
}

// IssueTokens emite access y refresh solo para usuarios con email verificado.
func (s *AuthService) IssueTokens(user domain.User) (TokenPair, error) {
	if !user.IsEmailVerified {
		return TokenPair{}, ErrEmailNotVerified
	}
	access, accessExp, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, TokenPair, error) {
	user, err := s.Authenticate(ctx, emailAddr, password)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	pair, err := s.IssueTokens(user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh canjea un refresh token por un access token nuevo; el refresh token no rota.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return AccessToken{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return AccessToken{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessToken{}, ErrUserNotFound
		}
		return AccessToken{}, err
	}
	token, exp, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) Tokens() *JWTService {
	return s.tokens
}
