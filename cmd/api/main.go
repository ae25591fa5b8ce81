package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"auth-service/internal/config"
	"auth-service/internal/db"
	"auth-service/internal/email"
	"auth-service/internal/events"
	apihttp "auth-service/internal/http"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
	"auth-service/internal/service"
	"auth-service/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		conn, err := db.OpenSQL(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open migration connection", zap.Error(err))
		}
		if err := db.MigrateUp(ctx, conn); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		conn.Close()
		logger.Info("migrations applied")
	}

	limiter := service.NewMemoryRateLimiter()
	cache := service.NewMemoryProfileCache(cfg.ProfileCacheTTL())
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process limiter and cache", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient)
			cache = service.NewRedisProfileCache(redisClient, cfg.ProfileCacheTTL())
		}
		cancel()
		defer redisClient.Close()
	}

	publisher := events.NewNoopPublisher()
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats connect failed, events disabled", zap.Error(err))
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close()

	var blobs storage.BlobStore
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3BlobStore(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			logger.Warn("s3 init failed, file routes disabled", zap.Error(err))
		} else if err := store.EnsureBucket(ctx); err != nil {
			logger.Warn("s3 bucket check failed, file routes disabled", zap.Error(err))
		} else {
			blobs = store
		}
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metrics.Handler(metrics.NewRegistry())
	}

	userRepo := repository.NewPgUserRepository(pool)
	hasher := service.NewPasswordHasher(nil)
	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	otpPolicy := service.OTPPolicy{
		Length:         cfg.OTPLength,
		TTL:            time.Duration(cfg.OTPExpireMinutes) * time.Minute,
		ResendInterval: time.Duration(cfg.OTPResendIntervalSeconds) * time.Second,
		MaxAttempts:    cfg.OTPMaxAttempts,
	}
	verificationSvc := service.NewVerificationService(logger, userRepo, hasher, newEmailSender(cfg, logger), otpPolicy,
		service.WithProfileCache(cache),
		service.WithEventPublisher(publisher),
		service.WithProjectName(cfg.ProjectName),
	)
	authSvc, err := service.NewAuthService(logger, userRepo, hasher, jwtSvc)
	if err != nil {
		logger.Fatal("auth service init", zap.Error(err))
	}
	userSvc := service.NewUserService(logger, userRepo, hasher, cache, verificationSvc, publisher)

	rateLimiter := apihttp.NewRateLimiter(logger, limiter, apihttp.RateLimitPolicy{
		apihttp.EndpointLogin:     cfg.RateLimitLogin,
		apihttp.EndpointRefresh:   cfg.RateLimitRefresh,
		apihttp.EndpointSendOTP:   cfg.RateLimitSendOTP,
		apihttp.EndpointVerifyOTP: cfg.RateLimitVerifyOTP,
		apihttp.EndpointDefault:   cfg.RateLimitDefault,
	})

	router := apihttp.NewRouter(
		logger,
		apihttp.NewAuthHandler(logger, authSvc, verificationSvc),
		apihttp.NewUserHandler(logger, userSvc),
		apihttp.NewFileHandler(logger, blobs),
		apihttp.NewHealthHandler(logger, cfg.ProjectName, pool),
		jwtSvc,
		rateLimiter,
		metricsHandler,
		cfg.TrustedProxies,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("service", cfg.ProjectName))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newLogger arma el logger de zap según LOG_LEVEL y LOG_FORMAT.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func newEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "mailersend":
		sender, err := email.NewMailerSendSender(cfg.MailerSendAPIKey, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("mailersend sender init failed", zap.Error(err))
			return email.NewDisabledSender("mailersend not configured")
		}
		return sender
	case "disabled":
		return email.NewDisabledSender("email delivery disabled")
	default:
		if cfg.SMTPHost == "" {
			logger.Warn("smtp host not configured, email delivery disabled")
			return email.NewDisabledSender("email sender not configured")
		}
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
			return email.NewDisabledSender("email sender not configured")
		}
		return sender
	}
}
