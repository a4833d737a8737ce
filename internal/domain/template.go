package domain

import (
	"fmt"
	"strings"
	"time"
)

// Content limits for template fields (in characters).
const (
	MaxTemplateSubject = 255
	MaxTemplateBody    = 100000
)

// EmailTemplate is an owner-scoped message template. The body may contain
// {{token}} placeholders substituted per recipient at send time.
type EmailTemplate struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:varchar(64);not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Subject   string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *EmailTemplate) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(t.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}

	if len([]rune(t.Subject)) > MaxTemplateSubject {
		return fmt.Errorf("%w: subject exceeds %d characters", ErrValidation, MaxTemplateSubject)
	}
	if len([]rune(t.Body)) > MaxTemplateBody {
		return fmt.Errorf("%w: body exceeds %d characters", ErrValidation, MaxTemplateBody)
	}

	return nil
}
