package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eraycetinay/mailblast/internal/domain"
	"gorm.io/gorm"
)

type BatchRepository interface {
	// CreateWithRecords persists the batch and all of its delivery records in
	// one transaction. A partially created batch is never observable.
	CreateWithRecords(ctx context.Context, b *domain.Batch, records []*domain.DeliveryRecord) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Batch, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error
	// UpdateStatusIf transitions status only when the current value matches
	// `from`, so concurrent finalizers settle on exactly one outcome.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.BatchStatus) (bool, error)
	MarkFailed(ctx context.Context, id string, lastError string) error
	// IncrementProcessed atomically bumps ProcessedCount and returns the
	// updated batch. The count never exceeds TotalCount.
	IncrementProcessed(ctx context.Context, id string) (*domain.Batch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) CreateWithRecords(ctx context.Context, b *domain.Batch, records []*domain.DeliveryRecord) error {
	batchModel := batchModelFromDomain(b)
	if batchModel == nil {
		return fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	recordModels := make([]DeliveryRecordModel, 0, len(records))
	for _, record := range records {
		if model := deliveryModelFromDomain(record); model != nil {
			recordModels = append(recordModels, *model)
		}
	}
	if len(recordModels) == 0 {
		return fmt.Errorf("%w: batch must include at least one delivery record", domain.ErrValidation)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batchModel).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&recordModels, 100).Error
	})
	if err != nil {
		return err
	}

	*b = *batchModelToDomain(batchModel)
	for i := range recordModels {
		if i < len(records) && records[i] != nil {
			*records[i] = *deliveryModelToDomain(&recordModels[i])
		}
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.BatchStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBatchRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.BatchStatusFailed,
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) IncrementProcessed(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&BatchModel{}).
			Where("id = ? AND processed_count < total_count", id).
			Update("processed_count", gorm.Expr("processed_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.First(&BatchModel{}, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}

		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	return batchModelToDomain(&model), nil
}
