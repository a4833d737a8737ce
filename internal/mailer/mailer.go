package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/eraycetinay/mailblast/internal/domain"
)

// Mail is one outbound message, fully rendered.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

func (m Mail) Validate() error {
	if !domain.IsValidEmail(m.To) {
		return fmt.Errorf("invalid recipient address %q", m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// Transport is the outbound email delivery port. Implementations classify
// failures via TransportError so the worker can decide whether to retry.
type Transport interface {
	Send(ctx context.Context, mail Mail) error
}
