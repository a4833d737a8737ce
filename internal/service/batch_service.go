package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/eraycetinay/mailblast/internal/extract"
	"github.com/eraycetinay/mailblast/internal/observability"
	"github.com/eraycetinay/mailblast/internal/queue"
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxSendAttempts = 3
	maxBatchRecipients     = 10000
)

// BatchService handles batch submission and read-side queries.
type BatchService struct {
	batches    repository.BatchRepository
	deliveries repository.DeliveryRepository
	templates  repository.TemplateRepository
	publisher  queue.Publisher
	guard      queue.EnqueueGuard
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// SubmitBatchInput carries one uploaded recipient file and its dispatch
// parameters.
type SubmitBatchInput struct {
	OwnerID    string
	TemplateID string
	FileData   []byte
	MimeType   string
	// Column optionally restricts recipient extraction to one header column.
	Column string
}

// BatchProgress is the read model returned for progress queries.
type BatchProgress struct {
	BatchID   string
	Status    domain.BatchStatus
	Total     int
	Processed int
	Counts    []repository.StatusCount
	LastError *string
}

func NewBatchService(
	batches repository.BatchRepository,
	deliveries repository.DeliveryRepository,
	templates repository.TemplateRepository,
	publisher queue.Publisher,
	guard queue.EnqueueGuard,
	logger *zap.Logger,
) (*BatchService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches:    batches,
		deliveries: deliveries,
		templates:  templates,
		publisher:  publisher,
		guard:      guard,
		logger:     logger,
	}, nil
}

// SubmitBatch extracts recipients from the uploaded file, persists the batch
// with one delivery record per unique address, and enqueues a dispatch job
// for each record.
func (s *BatchService) SubmitBatch(ctx context.Context, input SubmitBatchInput) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	templateID := strings.TrimSpace(input.TemplateID)
	if templateID == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	if len(input.FileData) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", domain.ErrValidation)
	}

	template, err := s.templates.GetByIDForOwner(ctx, templateID, ownerID)
	if err != nil {
		return nil, err
	}

	recipients, err := extract.ExtractWithOptions(input.FileData, input.MimeType, extract.Options{
		Column: input.Column,
	})
	if err != nil {
		return nil, err
	}
	if len(recipients) > maxBatchRecipients {
		return nil, fmt.Errorf("%w: batch exceeds %d recipients", domain.ErrValidation, maxBatchRecipients)
	}

	batch := &domain.Batch{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		TemplateID: template.ID,
		TotalCount: len(recipients),
		Status:     domain.BatchStatusPending,
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	records := make([]*domain.DeliveryRecord, 0, len(recipients))
	for _, recipient := range recipients {
		record, err := domain.NewDeliveryRecord(uuid.NewString(), batch.ID, ownerID, recipient, template)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := s.batches.CreateWithRecords(ctx, batch, records); err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncBatchCreated()
	}

	// Workers may drive the first record terminal before the enqueue loop
	// finishes, so the batch must already read PROCESSING when the first job
	// hits the queue or the finalizer cannot transition it.
	if err := s.batches.UpdateStatus(ctx, batch.ID, domain.BatchStatusProcessing); err != nil {
		s.abandonBatch(ctx, batch, recordIDs(records), "failed to start batch dispatch")
		return batch, fmt.Errorf("failed to transition batch to processing: %w", err)
	}
	batch.Status = domain.BatchStatusProcessing

	correlationID := uuid.NewString()
	enqueued, failed := s.enqueueRecords(ctx, records, correlationID)

	if enqueued == 0 {
		// Nothing reached the queue; the batch is abandoned as a whole rather
		// than left for the retry scanner to quietly dispatch later.
		s.abandonBatch(ctx, batch, failed, "failed to enqueue any delivery jobs")
		return batch, fmt.Errorf("failed to enqueue batch %s: queue unavailable", batch.ID)
	}

	if len(failed) > 0 {
		s.deferRecords(ctx, failed)
		s.logger.Warn("batch submitted with deferred enqueues",
			zap.String("batchId", batch.ID),
			zap.Int("deferred", len(failed)),
			zap.Int("total", len(records)),
		)
	} else {
		s.logger.Info("batch submitted",
			zap.String("batchId", batch.ID),
			zap.String("correlationId", correlationID),
			zap.Int("total", len(records)),
		)
	}

	return batch, nil
}

// abandonBatch marks the given records and the batch itself FAILED when
// dispatch never started. No retry marker is left behind, so the scanner
// cannot resurrect a batch the caller was told is dead.
func (s *BatchService) abandonBatch(ctx context.Context, batch *domain.Batch, pendingIDs []string, lastError string) {
	for _, id := range pendingIDs {
		if _, err := s.deliveries.MarkFailed(ctx, id, "delivery job was never enqueued"); err != nil {
			s.logger.Error("failed to mark abandoned delivery as failed",
				zap.String("deliveryId", id),
				zap.Error(err),
			)
		}
	}
	if err := s.batches.MarkFailed(ctx, batch.ID, lastError); err != nil {
		s.logger.Error("failed to mark batch as failed after enqueue errors",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}
	batch.Status = domain.BatchStatusFailed
	batch.LastError = &lastError
}

// deferRecords stamps each record with an immediate retry timestamp so the
// retry scanner re-enqueues it. Only called once at least one job reached the
// queue, which guarantees the batch is live and will be finalized.
func (s *BatchService) deferRecords(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.deliveries.ScheduleRetry(ctx, id, nowUTC()); err != nil {
			s.logger.Error("failed to defer delivery after publish error",
				zap.String("deliveryId", id),
				zap.Error(err),
			)
		}
	}
}

func recordIDs(records []*domain.DeliveryRecord) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids
}

// enqueueRecords publishes one dispatch job per record and reports which
// records could not be published; the caller decides whether those are
// deferred to the retry scanner or abandoned with the batch.
func (s *BatchService) enqueueRecords(
	ctx context.Context,
	records []*domain.DeliveryRecord,
	correlationID string,
) (enqueued int, failed []string) {
	for _, record := range records {
		acquired, err := s.guard.Acquire(ctx, record.ID)
		if err != nil {
			s.logger.Warn("enqueue guard unavailable, publishing anyway",
				zap.String("deliveryId", record.ID),
				zap.Error(err),
			)
		} else if !acquired {
			// Already enqueued by an earlier submission attempt.
			enqueued++
			continue
		}

		msg := queue.DeliveryMessage{
			DeliveryID:    record.ID,
			BatchID:       record.BatchID,
			CorrelationID: correlationID,
		}
		if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
			s.logger.Error("failed to publish delivery job",
				zap.String("deliveryId", record.ID),
				zap.Error(err),
			)
			failed = append(failed, record.ID)
			continue
		}
		enqueued++
	}

	return enqueued, failed
}

// GetBatchProgress returns the batch counters plus a per-status breakdown of
// its delivery records.
func (s *BatchService) GetBatchProgress(ctx context.Context, ownerID, batchID string) (*BatchProgress, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByIDForOwner(ctx, batchID, ownerID)
	if err != nil {
		return nil, err
	}

	counts, err := s.deliveries.StatusCounts(ctx, ownerID, &batchID)
	if err != nil {
		return nil, err
	}

	return &BatchProgress{
		BatchID:   batch.ID,
		Status:    batch.Status,
		Total:     batch.TotalCount,
		Processed: batch.ProcessedCount,
		Counts:    counts,
		LastError: batch.LastError,
	}, nil
}

// ListDeliveries pages through the owner's delivery records.
func (s *BatchService) ListDeliveries(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.DeliveryRecord, int64, error) {
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, 0, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.deliveries.List(ctx, params)
}

// GetStats aggregates the owner's delivery records by status, optionally
// scoped to one batch.
func (s *BatchService) GetStats(ctx context.Context, ownerID string, batchID *string) ([]repository.StatusCount, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if batchID != nil {
		trimmed := strings.TrimSpace(*batchID)
		if trimmed == "" {
			batchID = nil
		} else {
			if _, err := s.batches.GetByIDForOwner(ctx, trimmed, ownerID); err != nil {
				return nil, err
			}
			batchID = &trimmed
		}
	}
	return s.deliveries.StatusCounts(ctx, ownerID, batchID)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (s *BatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}
