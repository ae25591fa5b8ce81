package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-service/internal/metrics"
	"auth-service/internal/service"
)

// Nombres lógicos de endpoint para la tabla de límites.
const (
	EndpointLogin     = "login"
	EndpointRefresh   = "refresh"
	EndpointSendOTP   = "send_otp"
	EndpointVerifyOTP = "verify_otp"
	EndpointDefault   = "default"
)

// RateLimitPolicy mapea endpoint lógico a requests por ventana.
type RateLimitPolicy map[string]int

func (p RateLimitPolicy) limitFor(endpoint string) int {
	if limit, ok := p[endpoint]; ok {
		return limit
	}
	return p[EndpointDefault]
}

// RateLimiter aplica la política por endpoint y por IP del caller.
type RateLimiter struct {
	logger  *zap.Logger
	limiter service.RateLimiter
	policy  RateLimitPolicy
	window  time.Duration
}

func NewRateLimiter(logger *zap.Logger, limiter service.RateLimiter, policy RateLimitPolicy) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = service.NewMemoryRateLimiter()
	}
	return &RateLimiter{
		logger:  logger,
		limiter: limiter,
		policy:  policy,
		window:  time.Minute,
	}
}

// Middleware devuelve el interceptor para un endpoint lógico.
func (r *RateLimiter) Middleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		limit := r.policy.limitFor(endpoint)
		if limit <= 0 {
			c.Next()
			return
		}

		key := endpoint + ":" + c.ClientIP()
		decision, err := r.limiter.Allow(c.Request.Context(), key, limit, r.window)
		if err != nil {
			r.logger.Warn("rate limiter unavailable, allowing request", zap.Error(err), zap.String("endpoint", endpoint))
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := ceilSeconds(decision.RetryAfter)
		metrics.RecordRateLimited(endpoint)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "rate limit exceeded",
			"retry_after_seconds": retryAfter,
			"rate_limit":          fmt.Sprintf("%d/minute", limit),
		})
		c.Abort()
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
