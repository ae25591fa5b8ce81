package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTransport envuelve cualquier falla de entrega del proveedor.
var ErrTransport = errors.New("email transport error")

// Sender define la interfaz para envio de correos.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _, _, _ string) error {
	if s.reason == "" {
		return fmt.Errorf("%w: email sender disabled", ErrTransport)
	}
	return fmt.Errorf("%w: %s", ErrTransport, s.reason)
}

// VerificationMessage arma asunto y cuerpo del correo con el código OTP.
func VerificationMessage(projectName, code string, ttl time.Duration) (string, string) {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		projectName = "authorization-service"
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	subject := fmt.Sprintf("%s - Verify your email", projectName)
	body := fmt.Sprintf(
		"Your verification code is %s.\nIt expires in %d minutes.\nIf you did not request it, ignore this message.\n",
		code,
		minutes,
	)
	return subject, body
}
