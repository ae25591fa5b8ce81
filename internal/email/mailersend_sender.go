package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

// MailerSendSender envia correos via la API HTTP de MailerSend.
type MailerSendSender struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	timeout time.Duration
}

func NewMailerSendSender(apiKey, from, fromName string) (*MailerSendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("mailersend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mailersend from is required")
	}
	return &MailerSendSender{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: from,
		},
		timeout: 10 * time.Second,
	}, nil
}

func (m *MailerSendSender) Send(ctx context.Context, toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(body)

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: mailersend: %v", ErrTransport, err)
	}
	return nil
}
