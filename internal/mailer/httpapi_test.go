package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestAPITransportSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody apiRequest
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAPIKey = r.Header.Get("api-key")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"m-1"}`))
	}))
	defer server.Close()

	transport, err := NewAPITransport(server.URL, "secret-key")
	if err != nil {
		t.Fatalf("NewAPITransport() error = %v", err)
	}

	mail := Mail{
		To:      "a@x.com",
		Subject: "Welcome",
		HTML:    "<p>Hello a@x.com</p>",
	}

	if err := transport.Send(context.Background(), mail); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if gotAPIKey != "secret-key" {
		t.Fatalf("api-key header = %q, want secret-key", gotAPIKey)
	}
	if gotBody.To != mail.To {
		t.Fatalf("request.to = %q, want %q", gotBody.To, mail.To)
	}
	if gotBody.Subject != mail.Subject {
		t.Fatalf("request.subject = %q, want %q", gotBody.Subject, mail.Subject)
	}
	if gotBody.HTML != mail.HTML {
		t.Fatalf("request.html = %q, want %q", gotBody.HTML, mail.HTML)
	}
}

func TestAPITransportSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
		{name: "bad gateway is transient", statusCode: http.StatusBadGateway, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "unprocessable recipient is permanent", statusCode: http.StatusUnprocessableEntity, wantTransient: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer server.Close()

			transport, err := NewAPITransport(server.URL, "")
			if err != nil {
				t.Fatalf("NewAPITransport() error = %v", err)
			}

			sendErr := transport.Send(context.Background(), Mail{
				To:      "a@x.com",
				Subject: "s",
				HTML:    "b",
			})
			if sendErr == nil {
				t.Fatal("Send() expected error")
			}

			if got := IsTransient(sendErr); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}
		})
	}
}

func TestAPITransportSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(20 * time.Millisecond)

	transport, err := NewAPITransportWithClient(server.URL, "", client)
	if err != nil {
		t.Fatalf("NewAPITransportWithClient() error = %v", err)
	}

	sendErr := transport.Send(context.Background(), Mail{
		To:      "a@x.com",
		Subject: "s",
		HTML:    "b",
	})
	if sendErr == nil {
		t.Fatal("Send() expected timeout error")
	}
	if !IsTransient(sendErr) {
		t.Fatalf("IsTransient() = false for timeout, want true: %v", sendErr)
	}
}

func TestNewAPITransportValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewAPITransport("", "key"); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewAPITransport("not a url", "key"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}
