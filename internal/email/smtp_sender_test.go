package email

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"
)

type smtpSession struct {
	mailFrom string
	rcptTo   string
	data     string
}

// startSMTPServer atiende una sola conexion SMTP en texto plano y devuelve lo recibido.
func startSMTPServer(t *testing.T, rejectRcpt bool) (string, int, <-chan smtpSession) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	sessions := make(chan smtpSession, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tc := textproto.NewConn(conn)
		var got smtpSession
		_ = tc.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tc.ReadLine()
			if err != nil {
				sessions <- got
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO", "HELO":
				_ = tc.PrintfLine("250 localhost")
			case "MAIL":
				got.mailFrom = line
				_ = tc.PrintfLine("250 OK")
			case "RCPT":
				got.rcptTo = line
				if rejectRcpt {
					_ = tc.PrintfLine("550 mailbox unavailable")
					continue
				}
				_ = tc.PrintfLine("250 OK")
			case "DATA":
				_ = tc.PrintfLine("354 go ahead")
				data, err := tc.ReadDotBytes()
				if err != nil {
					sessions <- got
					return
				}
				got.data = string(data)
				_ = tc.PrintfLine("250 queued")
			case "QUIT":
				_ = tc.PrintfLine("221 bye")
				sessions <- got
				return
			default:
				_ = tc.PrintfLine("502 not implemented")
			}
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port, sessions
}

func waitSession(t *testing.T, sessions <-chan smtpSession) smtpSession {
	t.Helper()
	select {
	case s := <-sessions:
		return s
	case <-time.After(5 * time.Second):
		t.Fatalf("smtp session did not finish")
		return smtpSession{}
	}
}

func TestSMTPSenderSendDeliversMessage(t *testing.T) {
	host, port, sessions := startSMTPServer(t, false)
	sender, err := NewSMTPSender(host, port, "", "", "no-reply@x.com", "Auth", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sender.Send(ctx, "u@x.com", "Your code", "code 012345"); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := waitSession(t, sessions)
	if !strings.Contains(got.mailFrom, "<no-reply@x.com>") {
		t.Fatalf("unexpected MAIL FROM %q", got.mailFrom)
	}
	if !strings.Contains(got.rcptTo, "<u@x.com>") {
		t.Fatalf("unexpected RCPT TO %q", got.rcptTo)
	}
	for _, want := range []string{"From: Auth <no-reply@x.com>", "Subject: Your code", "code 012345"} {
		if !strings.Contains(got.data, want) {
			t.Fatalf("expected %q in delivered data:\n%s", want, got.data)
		}
	}
}

func TestSMTPSenderSendRejectedRecipient(t *testing.T) {
	host, port, sessions := startSMTPServer(t, true)
	sender, err := NewSMTPSender(host, port, "", "", "no-reply@x.com", "", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	err = sender.Send(context.Background(), "u@x.com", "s", "b")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "rcpt to") {
		t.Fatalf("expected failing step in error, got %v", err)
	}
	if got := waitSession(t, sessions); got.data != "" {
		t.Fatalf("no data expected after rejected recipient")
	}
}

func TestSMTPSenderSendUnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	port, _ := strconv.Atoi(portStr)

	sender, err := NewSMTPSender("127.0.0.1", port, "", "", "no-reply@x.com", "", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), "u@x.com", "s", "b"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestSMTPSenderSendCanceledContext(t *testing.T) {
	host, port, _ := startSMTPServer(t, false)
	sender, err := NewSMTPSender(host, port, "", "", "no-reply@x.com", "", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, "u@x.com", "s", "b"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestSMTPSenderSendRequiresRecipient(t *testing.T) {
	sender, err := NewSMTPSender("127.0.0.1", 25, "", "", "no-reply@x.com", "", false)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	err = sender.Send(context.Background(), " ", "s", "b")
	if err == nil || errors.Is(err, ErrTransport) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
