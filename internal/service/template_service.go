package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService handles owner-scoped template management.
type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateService(templates repository.TemplateRepository, logger *zap.Logger) (*TemplateService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TemplateService{
		templates: templates,
		logger:    logger,
	}, nil
}

func (s *TemplateService) Create(ctx context.Context, template *domain.EmailTemplate) (*domain.EmailTemplate, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	template.ID = strings.TrimSpace(template.ID)
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	template.OwnerID = strings.TrimSpace(template.OwnerID)
	template.Name = strings.TrimSpace(template.Name)
	template.Subject = strings.TrimSpace(template.Subject)

	if err := template.Validate(); err != nil {
		return nil, err
	}

	if err := s.templates.Create(ctx, template); err != nil {
		return nil, err
	}

	s.logger.Info("template created",
		zap.String("templateId", template.ID),
		zap.String("name", template.Name),
	)
	return template, nil
}

func (s *TemplateService) GetByID(ctx context.Context, id, ownerID string) (*domain.EmailTemplate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.templates.GetByIDForOwner(ctx, strings.TrimSpace(id), strings.TrimSpace(ownerID))
}

func (s *TemplateService) List(ctx context.Context, ownerID string) ([]domain.EmailTemplate, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.templates.ListByOwner(ctx, strings.TrimSpace(ownerID))
}

// Update replaces the template's name, subject, and body. Delivery records
// keep whatever subject was stamped on them at batch creation.
func (s *TemplateService) Update(ctx context.Context, template *domain.EmailTemplate) (*domain.EmailTemplate, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}
	if strings.TrimSpace(template.ID) == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}

	template.Name = strings.TrimSpace(template.Name)
	template.Subject = strings.TrimSpace(template.Subject)
	if err := template.Validate(); err != nil {
		return nil, err
	}

	if err := s.templates.Update(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) Delete(ctx context.Context, id, ownerID string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.templates.Delete(ctx, strings.TrimSpace(id), strings.TrimSpace(ownerID))
}
