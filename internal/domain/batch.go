package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the processing state of a batch.
type BatchStatus string

const (
	BatchStatusPending        BatchStatus = "PENDING"
	BatchStatusProcessing     BatchStatus = "PROCESSING"
	BatchStatusCompleted      BatchStatus = "COMPLETED"
	BatchStatusPartialFailure BatchStatus = "PARTIAL_FAILURE"
	// BatchStatusFailed is reserved for infrastructural failures that prevented
	// the batch from being dispatched at all, never for per-recipient outcomes.
	BatchStatusFailed BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted,
		BatchStatusPartialFailure, BatchStatusFailed:
		return true
	}
	return false
}

func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusPartialFailure, BatchStatusFailed:
		return true
	}
	return false
}

// Batch groups the delivery records created from one upload and one template.
// TotalCount is fixed at creation; ProcessedCount only grows as records
// reach a terminal state.
type Batch struct {
	ID             string      `gorm:"type:uuid;primaryKey"`
	OwnerID        string      `gorm:"type:varchar(64);not null"`
	TemplateID     string      `gorm:"type:uuid;not null"`
	TotalCount     int         `gorm:"not null"`
	ProcessedCount int         `gorm:"not null;default:0"`
	Status         BatchStatus `gorm:"type:varchar(20);not null"`
	LastError      *string     `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Batch) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if strings.TrimSpace(b.TemplateID) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if b.TotalCount < 1 {
		return fmt.Errorf("%w: batch must include at least one recipient", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}
