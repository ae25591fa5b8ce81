package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-service/internal/metrics"
	"auth-service/internal/service"
)

// AuthHandler expone login, refresh y el ciclo de verificación por OTP.
type AuthHandler struct {
	logger       *zap.Logger
	authServ     *service.AuthService
	verification *service.VerificationService
}

func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, verification *service.VerificationService) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		authServ:     authServ,
		verification: verification,
	}
}

type tokenResponse struct {
	AccessToken           string    `json:"access_token"`
	TokenType             string    `json:"token_type"`
	AccessTokenExpiresIn  int       `json:"access_token_expires_in"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	RefreshTokenExpiresIn int       `json:"refresh_token_expires_in,omitempty"`
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, pair, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			metrics.RecordLogin(metrics.ResultFailure)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrEmailNotVerified):
			metrics.RecordLogin(metrics.ResultUnverified)
			c.JSON(http.StatusForbidden, gin.H{"error": "email not verified"})
		default:
			metrics.RecordLogin(metrics.ResultError)
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		}
		return
	}

	metrics.RecordLogin(metrics.ResultSuccess)
	tokens := h.authServ.Tokens()
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:           pair.AccessToken,
		TokenType:             "bearer",
		AccessTokenExpiresIn:  int(tokens.AccessTTL().Seconds()),
		ExpiresAt:             pair.AccessExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresIn: int(tokens.RefreshTTL().Seconds()),
	})
}

// RefreshToken maneja POST /auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	access, err := h.authServ.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			metrics.RecordRefresh(metrics.ResultInvalid)
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		case errors.Is(err, service.ErrUserNotFound):
			metrics.RecordRefresh(metrics.ResultNotFound)
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			metrics.RecordRefresh(metrics.ResultError)
			h.logger.Error("refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh token"})
		}
		return
	}

	metrics.RecordRefresh(metrics.ResultSuccess)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:          access.Token,
		TokenType:            "bearer",
		AccessTokenExpiresIn: int(h.authServ.Tokens().AccessTTL().Seconds()),
		ExpiresAt:            access.ExpiresAt,
	})
}

// SendOTP maneja POST /auth/send-otp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send otp request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.verification.Send(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrEmailSendFailure) {
			metrics.RecordOTPSend(metrics.ResultTransport)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
			return
		}
		metrics.RecordOTPSend(metrics.ResultError)
		h.logger.Error("send otp failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send otp"})
		return
	}

	switch res.Outcome {
	case service.SendSent:
		metrics.RecordOTPSend(metrics.ResultSuccess)
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent", "expires_at": res.ExpiresAt})
	case service.SendUserNotFound:
		metrics.RecordOTPSend(metrics.ResultNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case service.SendAlreadyVerified:
		metrics.RecordOTPSend(metrics.ResultVerified)
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already verified"})
	case service.SendCooldown:
		metrics.RecordOTPSend(metrics.ResultCooldown)
		retryAfter := res.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "otp recently sent",
			"retry_after_seconds": retryAfter,
		})
	default:
		h.logger.Error("unexpected send outcome", zap.Stringer("outcome", res.Outcome))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send otp"})
	}
}

// VerifyOTP maneja POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		OTP   string `json:"otp" binding:"required,min=4,max=10"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.verification.Verify(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		metrics.RecordOTPVerify(metrics.ResultError)
		h.logger.Error("verify otp failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify otp"})
		return
	}

	switch res.Outcome {
	case service.VerifyVerified:
		metrics.RecordOTPVerify(metrics.ResultSuccess)
		c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
	case service.VerifyAlreadyVerified:
		metrics.RecordOTPVerify(metrics.ResultVerified)
		c.JSON(http.StatusOK, gin.H{"message": "Email already verified"})
	case service.VerifyUserNotFound:
		metrics.RecordOTPVerify(metrics.ResultNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case service.VerifyInvalidOrExpired:
		metrics.RecordOTPVerify(metrics.ResultInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired otp"})
	default:
		h.logger.Error("unexpected verify outcome", zap.Stringer("outcome", res.Outcome))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify otp"})
	}
}
