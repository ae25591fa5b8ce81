package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-service/internal/metrics"
	"auth-service/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	userH *UserHandler,
	fileH *FileHandler,
	healthH *HealthHandler,
	jwtSvc *service.JWTService,
	limiter *RateLimiter,
	metricsHandler http.Handler,
	trustedProxies []string,
) *gin.Engine {
	r := gin.New()
	// Sin proxies confiables ClientIP usa RemoteAddr e ignora X-Forwarded-For.
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, ignoring forwarded headers", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	// Middlewares basicos: request id, logging, metricas, recovery y JSON content-type.
	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), metricsMiddleware(), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/", limiter.Middleware(EndpointDefault), healthH.Root)
	r.GET("/healthz", healthH.Healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	auth := r.Group("/auth")
	auth.POST("/login", limiter.Middleware(EndpointLogin), authH.Login)
	auth.POST("/refresh-token", limiter.Middleware(EndpointRefresh), authH.RefreshToken)
	auth.POST("/send-otp", limiter.Middleware(EndpointSendOTP), authH.SendOTP)
	auth.POST("/verify-otp", limiter.Middleware(EndpointVerifyOTP), authH.VerifyOTP)

	users := r.Group("/users", limiter.Middleware(EndpointDefault))
	users.POST("", userH.CreateUser)

	protected := users.Group("", JWTAuthMiddleware(jwtSvc))
	protected.GET("/profile", userH.Profile)
	protected.PUT("/files/:name", fileH.Upload)
	protected.GET("/files/:name", fileH.Download)
	protected.DELETE("/files/:name", fileH.Delete)

	return r
}

// WithCORS envuelve el handler con la política CORS configurada.
func WithCORS(next http.Handler, origins []string) http.Handler {
	allowCredentials := true
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			allowCredentials = false
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", requestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})(next)
}

// requestIDMiddleware respeta X-Request-ID entrante o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
