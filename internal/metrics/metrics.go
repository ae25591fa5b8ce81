package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Valores de la etiqueta result.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultError       = "error"
	ResultUnverified  = "unverified"
	ResultNotFound    = "not_found"
	ResultVerified    = "already_verified"
	ResultCooldown    = "cooldown"
	ResultInvalid     = "invalid"
	ResultTransport   = "transport_error"
	ResultRateLimited = "rate_limited"
)

var LoginTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Login attempts by result",
	},
	[]string{"result"},
)

var RefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Refresh token exchanges by result",
	},
	[]string{"result"},
)

var OTPSendTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_otp_send_total",
		Help: "Verification code sends by result",
	},
	[]string{"result"},
)

var OTPVerifyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_otp_verify_total",
		Help: "Verification code checks by result",
	},
	[]string{"result"},
)

var RateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	},
	[]string{"endpoint"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "auth_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// Register registra las métricas del servicio. Panics si ya estaban registradas.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(LoginTotal)
	reg.MustRegister(RefreshTotal)
	reg.MustRegister(OTPSendTotal)
	reg.MustRegister(OTPVerifyTotal)
	reg.MustRegister(RateLimitedTotal)
	reg.MustRegister(HTTPRequestDuration)
}

// NewRegistry arma un registry con los collectors de runtime y las métricas propias.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Register(registry)
	return registry
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func RecordLogin(result string) {
	LoginTotal.WithLabelValues(result).Inc()
}

func RecordRefresh(result string) {
	RefreshTotal.WithLabelValues(result).Inc()
}

func RecordOTPSend(result string) {
	OTPSendTotal.WithLabelValues(result).Inc()
}

func RecordOTPVerify(result string) {
	OTPVerifyTotal.WithLabelValues(result).Inc()
}

func RecordRateLimited(endpoint string) {
	RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
