package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/email"
	"auth-service/internal/events"
	"auth-service/internal/repository"
)

// SendOutcome enumera los resultados de negocio de un envío de OTP.
type SendOutcome int

const (
	SendSent SendOutcome = iota
	SendUserNotFound
	SendAlreadyVerified
	SendCooldown
)

func (o SendOutcome) String() string {
	switch o {
	case SendSent:
		return "sent"
	case SendUserNotFound:
		return "user_not_found"
	case SendAlreadyVerified:
		return "already_verified"
	case SendCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

type SendResult struct {
	Outcome    SendOutcome
	RetryAfter time.Duration
	ExpiresAt  time.Time
}

// RetryAfterSeconds redondea hacia arriba para que el cliente no reintente antes de tiempo.
func (r SendResult) RetryAfterSeconds() int {
	return secondsCeil(r.RetryAfter)
}

// VerifyOutcome enumera los resultados de negocio de una verificación.
type VerifyOutcome int

const (
	VerifyVerified VerifyOutcome = iota
	VerifyUserNotFound
	VerifyAlreadyVerified
	VerifyInvalidOrExpired
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifyVerified:
		return "verified"
	case VerifyUserNotFound:
		return "user_not_found"
	case VerifyAlreadyVerified:
		return "already_verified"
	case VerifyInvalidOrExpired:
		return "invalid_or_expired"
	default:
		return "unknown"
	}
}

// VerifyResult no expone qué chequeo falló; reason queda solo para logs.
type VerifyResult struct {
	Outcome  VerifyOutcome
	Attempts int
	reason   string
}

func (r VerifyResult) Reason() string {
	return r.reason
}

const (
	reasonNotRequested = "not_requested"
	reasonExpired      = "expired"
	reasonLocked       = "locked"
	reasonMismatch     = "mismatch"
)

// VerificationService maneja el ciclo send/verify del OTP por email.
type VerificationService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	hasher      PasswordHasher
	sender      email.Sender
	policy      OTPPolicy
	projectName string
	cache       ProfileCache
	events      events.Publisher
	now         func() time.Time
}

type VerificationOption func(*VerificationService)

func WithProfileCache(cache ProfileCache) VerificationOption {
	return func(s *VerificationService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func WithEventPublisher(publisher events.Publisher) VerificationOption {
	return func(s *VerificationService) {
		if publisher != nil {
			s.events = publisher
		}
	}
}

func WithProjectName(name string) VerificationOption {
	return func(s *VerificationService) {
		s.projectName = name
	}
}

func NewVerificationService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, sender email.Sender, policy OTPPolicy, opts ...VerificationOption) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOTPPolicy()
	if policy.Length <= 0 {
		policy.Length = defaults.Length
	}
	if policy.TTL <= 0 {
		policy.TTL = defaults.TTL
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	s := &VerificationService{
		logger: logger,
		users:  users,
		hasher: hasher,
		sender: sender,
		policy: policy,
		cache:  NewMemoryProfileCache(0),
		events: events.NewNoopPublisher(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VerificationService) Policy() OTPPolicy {
	return s.policy
}

// Send genera y persiste un código nuevo y lo despacha por email.
// Si el despacho falla el estado persistido no se revierte y se devuelve ErrEmailSendFailure.
func (s *VerificationService) Send(ctx context.Context, emailAddr string) (SendResult, error) {
	if s.users == nil || s.hasher == nil {
		return SendResult{}, errNotConfigured
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SendResult{Outcome: SendUserNotFound}, nil
		}
		return SendResult{}, err
	}
	if user.IsEmailVerified {
		return SendResult{Outcome: SendAlreadyVerified}, nil
	}

	now := s.now().UTC()
	if wait := s.policy.cooldownRemaining(user.Verification.OTPLastSentAt, now); wait > 0 {
		return SendResult{Outcome: SendCooldown, RetryAfter: wait}, nil
	}

	code, err := GenerateOTP(s.policy.Length)
	if err != nil {
		return SendResult{}, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return SendResult{}, err
	}
	expiresAt := now.Add(s.policy.TTL)
	state := domain.VerificationState{
		OTPHash:       hash,
		OTPExpiresAt:  &expiresAt,
		OTPAttempts:   0,
		OTPLastSentAt: &now,
	}
	if err := s.users.UpdateOTP(ctx, user.ID, state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SendResult{Outcome: SendUserNotFound}, nil
		}
		return SendResult{}, err
	}

	result := SendResult{Outcome: SendSent, ExpiresAt: expiresAt}
	if s.sender == nil {
		return result, ErrEmailSendFailure
	}
	subject, body := email.VerificationMessage(s.projectName, code, s.policy.TTL)
	if err := s.sender.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Warn("send verification otp failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return result, fmt.Errorf("%w: %v", ErrEmailSendFailure, err)
	}
	return result, nil
}

// Verify aplica expiración, intentos y hash en ese orden. Cada fallo con ciclo abierto consume un intento.
func (s *VerificationService) Verify(ctx context.Context, emailAddr, code string) (VerifyResult, error) {
	if s.users == nil || s.hasher == nil {
		return VerifyResult{}, errNotConfigured
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerifyResult{Outcome: VerifyUserNotFound}, nil
		}
		return VerifyResult{}, err
	}
	if user.IsEmailVerified {
		return VerifyResult{Outcome: VerifyAlreadyVerified}, nil
	}

	state := user.Verification
	if reason := s.check(state, code, s.now().UTC()); reason != "" {
		attempts := state.OTPAttempts
		if state.Pending() {
			attempts, err = s.users.IncrementOTPAttempts(ctx, user.ID)
			if err != nil {
				return VerifyResult{}, err
			}
		}
		s.logger.Debug("otp verification rejected",
			zap.Int64("user_id", user.ID),
			zap.String("reason", reason),
			zap.Int("attempts", attempts),
		)
		return VerifyResult{Outcome: VerifyInvalidOrExpired, Attempts: attempts, reason: reason}, nil
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerifyResult{Outcome: VerifyUserNotFound}, nil
		}
		return VerifyResult{}, err
	}
	if err := s.cache.Invalidate(ctx, user.ID); err != nil {
		s.logger.Debug("profile cache invalidate failed", zap.Error(err), zap.Int64("user_id", user.ID))
	}
	if err := s.events.Publish(ctx, events.UserEmailVerified, events.UserEmailVerifiedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		VerifiedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish email verified failed", zap.Error(err), zap.Int64("user_id", user.ID))
	}
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (s *VerificationService) check(state domain.VerificationState, code string, now time.Time) string {
	if !state.Pending() {
		return reasonNotRequested
	}
	if state.OTPExpiresAt == nil || now.After(*state.OTPExpiresAt) {
		return reasonExpired
	}
	if state.OTPAttempts >= s.policy.MaxAttempts {
		return reasonLocked
	}
	if !s.policy.isWellFormed(code) || !s.hasher.Verify(code, state.OTPHash) {
		return reasonMismatch
	}
	return ""
}
