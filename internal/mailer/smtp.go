package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

const defaultSMTPTimeout = 15 * time.Second

var _ Transport = (*SMTPTransport)(nil)

// SMTPTransport delivers mail through a plain SMTP relay.
type SMTPTransport struct {
	addr    string
	host    string
	from    string
	auth    smtp.Auth
	timeout time.Duration

	// sendMail is swappable in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(host string, port int, username, password, from string) (*SMTPTransport, error) {
	trimmedHost := strings.TrimSpace(host)
	if trimmedHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", port)
	}
	if !strings.Contains(from, "@") {
		return nil, fmt.Errorf("invalid smtp sender address %q", from)
	}

	var auth smtp.Auth
	if strings.TrimSpace(username) != "" {
		auth = smtp.PlainAuth("", username, password, trimmedHost)
	}

	return &SMTPTransport{
		addr:     fmt.Sprintf("%s:%d", trimmedHost, port),
		host:     trimmedHost,
		from:     strings.TrimSpace(from),
		auth:     auth,
		timeout:  defaultSMTPTimeout,
		sendMail: smtp.SendMail,
	}, nil
}

func (s *SMTPTransport) Send(ctx context.Context, mail Mail) error {
	if s == nil || s.sendMail == nil {
		return fmt.Errorf("smtp transport is not initialized")
	}
	if err := mail.Validate(); err != nil {
		return fmt.Errorf("invalid mail: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg := buildMessage(s.from, mail)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.addr, s.auth, s.from, []string{mail.To}, msg)
	}()

	select {
	case <-ctx.Done():
		return &TransportError{
			Message:   "smtp send timed out",
			Transient: true,
			Cause:     ctx.Err(),
		}
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s failed: %w", mail.To, err)
		}
		return nil
	}
}

func buildMessage(from string, mail Mail) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + mail.To + "\r\n")
	b.WriteString("Subject: " + mail.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(mail.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
