package repository

import (
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	OwnerID        string             `gorm:"type:varchar(64);not null"`
	TemplateID     string             `gorm:"type:uuid;not null"`
	TotalCount     int                `gorm:"not null"`
	ProcessedCount int                `gorm:"not null;default:0"`
	Status         domain.BatchStatus `gorm:"type:varchar(20);not null"`
	LastError      *string            `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// DeliveryRecordModel is the persistence model for delivery_records.
type DeliveryRecordModel struct {
	ID           string                `gorm:"type:uuid;primaryKey"`
	BatchID      string                `gorm:"type:uuid;not null"`
	OwnerID      string                `gorm:"type:varchar(64);not null"`
	Recipient    string                `gorm:"type:varchar(255);not null"`
	TemplateID   string                `gorm:"type:uuid;not null"`
	Subject      string                `gorm:"type:varchar(255);not null"`
	RenderedBody *string               `gorm:"type:text"`
	Status       domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	Error        *string               `gorm:"type:text"`
	SentAt       *time.Time
	Attempts     int `gorm:"not null;default:0"`
	MaxAttempts  int `gorm:"not null;default:3"`
	NextRetryAt  *time.Time
	ClaimedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DeliveryRecordModel) TableName() string {
	return "delivery_records"
}

// EmailTemplateModel is the persistence model for email_templates.
type EmailTemplateModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:varchar(64);not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Subject   string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EmailTemplateModel) TableName() string {
	return "email_templates"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:             b.ID,
		OwnerID:        b.OwnerID,
		TemplateID:     b.TemplateID,
		TotalCount:     b.TotalCount,
		ProcessedCount: b.ProcessedCount,
		Status:         b.Status,
		LastError:      b.LastError,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		TemplateID:     m.TemplateID,
		TotalCount:     m.TotalCount,
		ProcessedCount: m.ProcessedCount,
		Status:         m.Status,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func deliveryModelFromDomain(d *domain.DeliveryRecord) *DeliveryRecordModel {
	if d == nil {
		return nil
	}

	return &DeliveryRecordModel{
		ID:           d.ID,
		BatchID:      d.BatchID,
		OwnerID:      d.OwnerID,
		Recipient:    d.Recipient,
		TemplateID:   d.TemplateID,
		Subject:      d.Subject,
		RenderedBody: d.RenderedBody,
		Status:       d.Status,
		Error:        d.Error,
		SentAt:       d.SentAt,
		Attempts:     d.Attempts,
		MaxAttempts:  d.MaxAttempts,
		NextRetryAt:  d.NextRetryAt,
		ClaimedAt:    d.ClaimedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryRecordModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		ID:           m.ID,
		BatchID:      m.BatchID,
		OwnerID:      m.OwnerID,
		Recipient:    m.Recipient,
		TemplateID:   m.TemplateID,
		Subject:      m.Subject,
		RenderedBody: m.RenderedBody,
		Status:       m.Status,
		Error:        m.Error,
		SentAt:       m.SentAt,
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		NextRetryAt:  m.NextRetryAt,
		ClaimedAt:    m.ClaimedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func templateModelFromDomain(t *domain.EmailTemplate) *EmailTemplateModel {
	if t == nil {
		return nil
	}

	return &EmailTemplateModel{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Name:      t.Name,
		Subject:   t.Subject,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func templateModelToDomain(m *EmailTemplateModel) *domain.EmailTemplate {
	if m == nil {
		return nil
	}

	return &domain.EmailTemplate{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		Subject:   m.Subject,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
