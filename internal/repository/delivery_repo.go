package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListParams struct {
	OwnerID  string
	Status   *domain.DeliveryStatus
	BatchID  *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// ClaimLease bounds how long a worker may hold a claimed record before
// another worker is allowed to re-claim it.
const ClaimLease = 2 * time.Minute

type StatusCount struct {
	Status domain.DeliveryStatus `gorm:"column:status"`
	Count  int                   `gorm:"column:count"`
}

type DeliveryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	List(ctx context.Context, params ListParams) ([]domain.DeliveryRecord, int64, error)
	// ClaimForSend leases the record to the calling worker (claimed_at stamped,
	// attempts incremented) while holding a row lock. A nil record means the
	// row is already terminal or leased by another worker and the caller must
	// skip it; the lease expires after ClaimLease so a crashed worker cannot
	// strand the record.
	ClaimForSend(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	// ReleaseClaim drops the lease and refunds the attempt when the claim
	// never reached the transport.
	ReleaseClaim(ctx context.Context, id string) error
	// MarkSucceeded and MarkFailed only transition rows still in PENDING; the
	// returned bool reports whether this call performed the transition.
	MarkSucceeded(ctx context.Context, id, subject, renderedBody string, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error
	GetDueForRetry(ctx context.Context, limit int) ([]domain.DeliveryRecord, error)
	ClearNextRetryAt(ctx context.Context, id string) error
	StatusCounts(ctx context.Context, ownerID string, batchID *string) ([]StatusCount, error)
	CountByBatchAndStatus(ctx context.Context, batchID string, status domain.DeliveryStatus) (int64, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	var model DeliveryRecordModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) List(ctx context.Context, params ListParams) ([]domain.DeliveryRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryRecordModel{})

	if params.OwnerID != "" {
		query = query.Where("owner_id = ?", params.OwnerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.BatchID != nil {
		query = query.Where("batch_id = ?", *params.BatchID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []DeliveryRecordModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}

	return records, total, nil
}

func (r *GormDeliveryRepo) ClaimForSend(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	var claimed *DeliveryRecordModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model DeliveryRecordModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		// Terminal rows are left untouched; duplicate queue deliveries land here.
		if model.Status.IsTerminal() {
			return nil
		}

		// A fresh lease means another worker is mid-send on this record; a
		// duplicate delivery must not reach the transport a second time.
		now := time.Now().UTC()
		if model.ClaimedAt != nil && now.Sub(*model.ClaimedAt) < ClaimLease {
			return nil
		}

		model.Attempts++
		model.ClaimedAt = &now
		err = tx.Model(&model).Updates(map[string]any{
			"attempts":   model.Attempts,
			"claimed_at": model.ClaimedAt,
		}).Error
		if err != nil {
			return err
		}

		claimed = &model
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deliveryModelToDomain(claimed), nil
}

func (r *GormDeliveryRepo) MarkSucceeded(ctx context.Context, id, subject, renderedBody string, sentAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryStatusPending).
		Updates(map[string]any{
			"status":        domain.DeliveryStatusSuccess,
			"subject":       subject,
			"rendered_body": renderedBody,
			"sent_at":       sentAt,
			"error":         nil,
			"next_retry_at": nil,
			"claimed_at":    nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormDeliveryRepo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryStatusPending).
		Updates(map[string]any{
			"status":        domain.DeliveryStatusFailed,
			"error":         reason,
			"next_retry_at": nil,
			"claimed_at":    nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormDeliveryRepo) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ? AND attempts > 0", id, domain.DeliveryStatusPending).
		Updates(map[string]any{
			"claimed_at": nil,
			"attempts":   gorm.Expr("attempts - 1"),
		}).Error
}

func (r *GormDeliveryRepo) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryStatusPending).
		Updates(map[string]any{
			"next_retry_at": nextRetryAt,
			"claimed_at":    nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormDeliveryRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.DeliveryRecord, error) {
	var models []DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", domain.DeliveryStatusPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}

	return records, nil
}

func (r *GormDeliveryRepo) ClearNextRetryAt(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Update("next_retry_at", nil).Error
}

func (r *GormDeliveryRepo) StatusCounts(ctx context.Context, ownerID string, batchID *string) ([]StatusCount, error) {
	query := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Select("status, COUNT(*) as count").
		Where("owner_id = ?", ownerID)

	if batchID != nil {
		query = query.Where("batch_id = ?", *batchID)
	}

	var counts []StatusCount
	if err := query.Group("status").Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormDeliveryRepo) CountByBatchAndStatus(ctx context.Context, batchID string, status domain.DeliveryStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
