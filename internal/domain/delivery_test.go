package domain

import (
	"errors"
	"testing"
)

func TestParseDeliveryStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    DeliveryStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "SUCCESS", want: DeliveryStatusSuccess},
		{name: "valid lowercase with spaces", input: " pending ", want: DeliveryStatusPending},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDeliveryStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseDeliveryStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseDeliveryStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDeliveryStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeliveryStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if DeliveryStatusPending.IsTerminal() {
		t.Fatal("PENDING should not be terminal")
	}
	if !DeliveryStatusSuccess.IsTerminal() {
		t.Fatal("SUCCESS should be terminal")
	}
	if !DeliveryStatusFailed.IsTerminal() {
		t.Fatal("FAILED should be terminal")
	}
}

func TestIsValidEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "plain address", input: "a@x.com", want: true},
		{name: "subdomain", input: "user@mail.example.org", want: true},
		{name: "surrounding spaces trimmed", input: "  b@x.com  ", want: true},
		{name: "missing at sign", input: "not-an-email", want: false},
		{name: "missing tld", input: "a@x", want: false},
		{name: "internal whitespace", input: "a b@x.com", want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsValidEmail(tt.input); got != tt.want {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewDeliveryRecord(t *testing.T) {
	t.Parallel()

	template := &EmailTemplate{
		ID:      "tpl-1",
		OwnerID: "user-1",
		Name:    "welcome",
		Subject: "Welcome aboard",
		Body:    "<p>Hello {{email}}</p>",
	}

	record, err := NewDeliveryRecord("d1", "b1", "user-1", " a@x.com ", template)
	if err != nil {
		t.Fatalf("NewDeliveryRecord() unexpected error = %v", err)
	}

	if record.Status != DeliveryStatusPending {
		t.Fatalf("status = %s, want PENDING", record.Status)
	}
	if record.Recipient != "a@x.com" {
		t.Fatalf("recipient = %q, want a@x.com", record.Recipient)
	}
	if record.Subject != template.Subject {
		t.Fatalf("subject = %q, want stamped template subject %q", record.Subject, template.Subject)
	}
	if record.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", record.Attempts)
	}
	if record.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("max attempts = %d, want %d", record.MaxAttempts, defaultMaxAttempts)
	}

	_, err = NewDeliveryRecord("d2", "b1", "user-1", "not-an-email", template)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("NewDeliveryRecord() error = %v, want ErrValidation", err)
	}

	_, err = NewDeliveryRecord("d3", "b1", "user-1", "a@x.com", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("NewDeliveryRecord() with nil template error = %v, want ErrValidation", err)
	}
}

func TestBatchValidate(t *testing.T) {
	t.Parallel()

	base := Batch{
		OwnerID:    "user-1",
		TemplateID: "tpl-1",
		TotalCount: 3,
		Status:     BatchStatusPending,
	}

	tests := []struct {
		name    string
		mutate  func(*Batch)
		wantErr bool
	}{
		{
			name:   "valid batch",
			mutate: func(b *Batch) {},
		},
		{
			name: "missing owner",
			mutate: func(b *Batch) {
				b.OwnerID = ""
			},
			wantErr: true,
		},
		{
			name: "zero recipients",
			mutate: func(b *Batch) {
				b.TotalCount = 0
			},
			wantErr: true,
		},
		{
			name: "invalid status",
			mutate: func(b *Batch) {
				b.Status = BatchStatus("DONE")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batch := base
			tt.mutate(&batch)

			err := batch.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
