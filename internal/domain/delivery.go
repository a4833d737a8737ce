package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DeliveryStatus represents the lifecycle state of a single recipient delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSuccess DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSuccess, DeliveryStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSuccess || s == DeliveryStatusFailed
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// emailPattern matches local@domain.tld with no internal whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether the trimmed value looks like an email address.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

const defaultMaxAttempts = 3

// DeliveryRecord tracks one recipient's delivery attempt and outcome within a batch.
// Retried attempts mutate the same record; a record is never re-created.
type DeliveryRecord struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	BatchID      string         `gorm:"type:uuid;not null"`
	OwnerID      string         `gorm:"type:varchar(64);not null"`
	Recipient    string         `gorm:"type:varchar(255);not null"`
	TemplateID   string         `gorm:"type:uuid;not null"`
	Subject      string         `gorm:"type:varchar(255);not null"`
	RenderedBody *string        `gorm:"type:text"`
	Status       DeliveryStatus `gorm:"type:varchar(20);not null"`
	Error        *string        `gorm:"type:text"`
	SentAt       *time.Time
	Attempts     int `gorm:"not null;default:0"`
	MaxAttempts  int `gorm:"not null;default:3"`
	NextRetryAt  *time.Time
	// ClaimedAt marks the record as leased by a worker; a duplicate queue
	// delivery must not claim it while the lease is fresh.
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *DeliveryRecord) Validate() error {
	if strings.TrimSpace(d.BatchID) == "" {
		return fmt.Errorf("%w: batch id is required", ErrValidation)
	}
	if strings.TrimSpace(d.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if strings.TrimSpace(d.TemplateID) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if !IsValidEmail(d.Recipient) {
		return fmt.Errorf("%w: invalid recipient address %q", ErrValidation, d.Recipient)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", ErrValidation, d.Status)
	}
	return nil
}

// NewDeliveryRecord builds a pending record stamped with the template's current subject.
func NewDeliveryRecord(id, batchID, ownerID, recipient string, template *EmailTemplate) (*DeliveryRecord, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: template is required", ErrValidation)
	}

	record := &DeliveryRecord{
		ID:          id,
		BatchID:     batchID,
		OwnerID:     ownerID,
		Recipient:   strings.TrimSpace(recipient),
		TemplateID:  template.ID,
		Subject:     template.Subject,
		Status:      DeliveryStatusPending,
		Attempts:    0,
		MaxAttempts: defaultMaxAttempts,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}
