package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/events"
	"auth-service/internal/repository"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidPassword        = errors.New("password must be between 6 and 512 characters")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrEmailSendFailure       = errors.New("email send failed")
	errNotConfigured          = errors.New("user service not configured")
)

const (
	minPasswordLength = 6
	maxPasswordLength = 512
)

type verificationSender interface {
	Send(ctx context.Context, emailAddr string) (SendResult, error)
}

// UserService coordina registro y lectura de perfiles.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	cache    ProfileCache
	verifier verificationSender
	events   events.Publisher
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, cache ProfileCache, verifier verificationSender, publisher events.Publisher) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryProfileCache(0)
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &UserService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		cache:    cache,
		verifier: verifier,
		events:   publisher,
	}
}

type RegisterInput struct {
	Email    string
	FullName string
	Password string
}

// Register crea el usuario no verificado y dispara el envío del OTP sin bloquear por fallas de email.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil || s.hasher == nil {
		return domain.User{}, errNotConfigured
	}

	emailAddr := normalizeEmail(input.Email)
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	if n := len(input.Password); n < minPasswordLength || n > maxPasswordLength {
		return domain.User{}, ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.Create(ctx, repository.NewUser{
		Email:        emailAddr,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return domain.User{}, ErrEmailAlreadyRegistered
		}
		return domain.User{}, err
	}

	if err := s.events.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish user registered failed", zap.Error(err), zap.Int64("user_id", user.ID))
	}

	if s.verifier != nil {
		if _, err := s.verifier.Send(ctx, user.Email); err != nil {
			s.logger.Warn("registration otp dispatch failed", zap.Error(err), zap.Int64("user_id", user.ID))
		}
	}
	return user, nil
}

// Profile lee el perfil pasando por la cache; sin cache o con error va directo a la base.
func (s *UserService) Profile(ctx context.Context, userID int64) (domain.UserProfile, error) {
	if s.users == nil {
		return domain.UserProfile{}, errNotConfigured
	}
	profile, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Debug("profile cache read failed", zap.Error(err), zap.Int64("user_id", userID))
	}
	if ok {
		return profile, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserProfile{}, ErrUserNotFound
		}
		return domain.UserProfile{}, err
	}
	profile = user.Profile()
	if err := s.cache.Set(ctx, profile); err != nil {
		s.logger.Debug("profile cache write failed", zap.Error(err), zap.Int64("user_id", userID))
	}
	return profile, nil
}

// normalizeEmail solo recorta espacios; el email se compara tal como se guardó.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > 320 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
