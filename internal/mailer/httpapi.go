package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPITimeout = 10 * time.Second

var _ Transport = (*APITransport)(nil)

type apiRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// APITransport delivers mail through an HTTP email API (Brevo-style).
type APITransport struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewAPITransport(endpoint, apiKey string) (*APITransport, error) {
	client := resty.New()
	client.SetTimeout(defaultAPITimeout)
	client.SetRetryCount(0)

	return NewAPITransportWithClient(endpoint, apiKey, client)
}

func NewAPITransportWithClient(endpoint, apiKey string, client *resty.Client) (*APITransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mail api endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mail api endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultAPITimeout)
	}
	client.SetRetryCount(0)

	return &APITransport{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
	}, nil
}

func (t *APITransport) Send(ctx context.Context, mail Mail) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("api transport is not initialized")
	}
	if err := mail.Validate(); err != nil {
		return fmt.Errorf("invalid mail: %w", err)
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(apiRequest{
			To:      mail.To,
			Subject: mail.Subject,
			HTML:    mail.HTML,
		})
	if t.apiKey != "" {
		req.SetHeader("api-key", t.apiKey)
	}

	response, err := req.Post(t.endpoint)
	if err != nil {
		return &TransportError{
			Message:   "mail api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &TransportError{
			Message:   "mail api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &TransportError{
		StatusCode: statusCode,
		Message:    apiErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func apiErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("mail api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
