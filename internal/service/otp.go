package service

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// OTPPolicy agrupa los límites del ciclo de verificación por email.
type OTPPolicy struct {
	Length         int
	TTL            time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
}

func DefaultOTPPolicy() OTPPolicy {
	return OTPPolicy{
		Length:         6,
		TTL:            10 * time.Minute,
		ResendInterval: time.Minute,
		MaxAttempts:    5,
	}
}

var errOTPLength = errors.New("otp length must be positive")

var tenDigits = big.NewInt(10)

// GenerateOTP devuelve exactamente length dígitos, cada uno sorteado con crypto/rand.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", errOTPLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, tenDigits)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// cooldownRemaining devuelve cuánto falta para poder reenviar; 0 si ya se puede.
func (p OTPPolicy) cooldownRemaining(lastSentAt *time.Time, now time.Time) time.Duration {
	if lastSentAt == nil || p.ResendInterval <= 0 {
		return 0
	}
	elapsed := now.Sub(*lastSentAt)
	if elapsed >= p.ResendInterval {
		return 0
	}
	return p.ResendInterval - elapsed
}

func (p OTPPolicy) isWellFormed(code string) bool {
	if len(code) != p.Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
