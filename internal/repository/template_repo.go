package repository

import (
	"context"
	"errors"

	"github.com/eraycetinay/mailblast/internal/domain"
	"gorm.io/gorm"
)

// TemplateRepository is owner-scoped on every read and write: a template is
// only ever visible to the user who created it.
type TemplateRepository interface {
	Create(ctx context.Context, t *domain.EmailTemplate) error
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.EmailTemplate, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.EmailTemplate, error)
	Update(ctx context.Context, t *domain.EmailTemplate) error
	Delete(ctx context.Context, id, ownerID string) error
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) Create(ctx context.Context, t *domain.EmailTemplate) error {
	model := templateModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if t != nil {
		*t = *templateModelToDomain(model)
	}
	return nil
}

func (r *GormTemplateRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.EmailTemplate, error) {
	var model EmailTemplateModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.EmailTemplate, error) {
	var models []EmailTemplateModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	templates := make([]domain.EmailTemplate, 0, len(models))
	for i := range models {
		templates = append(templates, *templateModelToDomain(&models[i]))
	}
	return templates, nil
}

func (r *GormTemplateRepo) Update(ctx context.Context, t *domain.EmailTemplate) error {
	result := r.db.WithContext(ctx).
		Model(&EmailTemplateModel{}).
		Where("id = ? AND owner_id = ?", t.ID, t.OwnerID).
		Updates(map[string]any{
			"name":    t.Name,
			"subject": t.Subject,
			"body":    t.Body,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTemplateRepo) Delete(ctx context.Context, id, ownerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&EmailTemplateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
