package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	ProjectName string `env:"PROJECT_NAME" envDefault:"authorization-service"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL       string        `env:"DATABASE_URL,required"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	DBConnectRetries  uint64        `env:"DB_CONNECT_RETRIES" envDefault:"5"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	JWTSecret                string `env:"JWT_SECRET,required"`
	JWTIssuer                string `env:"JWT_ISSUER" envDefault:"authorization-service"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"7"`

	CORSOrigins    []string `env:"BACKEND_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	MailProvider     string `env:"MAIL_PROVIDER" envDefault:"smtp"`
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string `env:"SMTP_USER"`
	SMTPPass         string `env:"SMTP_PASS"`
	SMTPFrom         string `env:"SMTP_FROM"`
	SMTPFromName     string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS       bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	MailerSendAPIKey string `env:"MAILERSEND_API_KEY"`

	OTPExpireMinutes         int `env:"EMAIL_OTP_EXPIRE_MINUTES" envDefault:"10"`
	OTPLength                int `env:"EMAIL_OTP_LENGTH" envDefault:"6"`
	OTPResendIntervalSeconds int `env:"EMAIL_OTP_RESEND_INTERVAL_SECONDS" envDefault:"60"`
	OTPMaxAttempts           int `env:"EMAIL_OTP_MAX_ATTEMPTS" envDefault:"5"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisPassword           string `env:"REDIS_PASSWORD"`
	RedisDB                 int    `env:"REDIS_DB" envDefault:"0"`
	RedisCacheExpireSeconds int    `env:"REDIS_CACHE_EXPIRE_SECONDS" envDefault:"300"`

	RateLimitLogin     int `env:"RATE_LIMIT_LOGIN" envDefault:"30"`
	RateLimitRefresh   int `env:"RATE_LIMIT_REFRESH" envDefault:"60"`
	RateLimitSendOTP   int `env:"RATE_LIMIT_SEND_OTP" envDefault:"5"`
	RateLimitVerifyOTP int `env:"RATE_LIMIT_VERIFY_OTP" envDefault:"10"`
	RateLimitDefault   int `env:"RATE_LIMIT_DEFAULT" envDefault:"100"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET"`

	NATSURL        string `env:"NATS_URL"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que dejarían los flujos de auth sin sentido.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be blank"))
	}
	if c.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.RefreshTokenExpireDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRE_DAYS must be positive"))
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		errs = append(errs, errors.New("EMAIL_OTP_LENGTH must be between 4 and 10"))
	}
	if c.OTPMaxAttempts <= 0 {
		errs = append(errs, errors.New("EMAIL_OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.OTPExpireMinutes <= 0 {
		errs = append(errs, errors.New("EMAIL_OTP_EXPIRE_MINUTES must be positive"))
	}
	if c.OTPResendIntervalSeconds < 0 {
		errs = append(errs, errors.New("EMAIL_OTP_RESEND_INTERVAL_SECONDS must not be negative"))
	}
	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", proxy))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.MailProvider)) {
	case "smtp", "mailersend", "disabled", "":
	default:
		errs = append(errs, errors.New("MAIL_PROVIDER must be one of smtp, mailersend, disabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

func (c *Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.RedisCacheExpireSeconds) * time.Second
}

func validProxy(proxy string) bool {
	proxy = strings.TrimSpace(proxy)
	if strings.Contains(proxy, "/") {
		_, _, err := net.ParseCIDR(proxy)
		return err == nil
	}
	return net.ParseIP(proxy) != nil
}
