package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/eraycetinay/mailblast/internal/events"
	"github.com/eraycetinay/mailblast/internal/mailer"
	"github.com/eraycetinay/mailblast/internal/observability"
	"github.com/eraycetinay/mailblast/internal/queue"
	"github.com/eraycetinay/mailblast/internal/ratelimit"
	"github.com/eraycetinay/mailblast/internal/render"
	"github.com/eraycetinay/mailblast/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

// WorkerService consumes delivery jobs and drives each record to a terminal
// state, updating batch progress along the way.
type WorkerService struct {
	deliveries    repository.DeliveryRepository
	batches       repository.BatchRepository
	templates     repository.TemplateRepository
	consumer      queue.Consumer
	transport     mailer.Transport
	transportName string
	rateLimiter   ratelimit.RateLimiter
	progress      events.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
	randIntn      func(n int) int
}

func NewWorkerService(
	deliveries repository.DeliveryRepository,
	batches repository.BatchRepository,
	templates repository.TemplateRepository,
	consumer queue.Consumer,
	transport mailer.Transport,
	transportName string,
	rateLimiter ratelimit.RateLimiter,
	progress events.Publisher,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if progress == nil {
		progress = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		deliveries:    deliveries,
		batches:       batches,
		templates:     templates,
		consumer:      consumer,
		transport:     transport,
		transportName: transportName,
		rateLimiter:   rateLimiter,
		progress:      progress,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
		randIntn:      rand.Intn,
	}, nil
}

// Start consumes the dispatch queue and processes delivery jobs until context
// cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DispatchQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.DispatchQueue, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	record, err := s.deliveries.ClaimForSend(ctx, msg.DeliveryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("delivery record not found during claim, skipping",
				zap.String("deliveryId", msg.DeliveryID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim delivery record: %w", err)
	}

	// Nil means the record is already terminal or leased to another worker;
	// ack and skip so a redelivered message cannot send the same email twice.
	if record == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(s.transportName)
		defer s.metrics.DecWorkerInFlight(s.transportName)
	}

	template, err := s.templates.GetByIDForOwner(ctx, record.TemplateID, record.OwnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.failDelivery(ctx, record, "template not found", "template_missing")
		}
		s.releaseClaim(ctx, record.ID)
		return fmt.Errorf("failed to load template: %w", err)
	}

	renderCtx := map[string]string{"email": record.Recipient}
	subject := render.Render(template.Subject, renderCtx)
	body := render.Render(template.Body, renderCtx)

	if err := s.rateLimiter.Wait(ctx, s.transportName); err != nil {
		s.releaseClaim(ctx, record.ID)
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	mail := mailer.Mail{
		To:      record.Recipient,
		Subject: subject,
		HTML:    body,
	}

	sendStart := s.now()
	sendErr := s.transport.Send(ctx, mail)
	if s.metrics != nil {
		s.metrics.ObserveEmailSendDuration(s.transportName, s.now().Sub(sendStart))
	}

	if sendErr == nil {
		did, err := s.deliveries.MarkSucceeded(ctx, record.ID, subject, body, s.now().UTC())
		if err != nil {
			return fmt.Errorf("failed to mark delivery as succeeded: %w", err)
		}
		if !did {
			return nil
		}
		if s.metrics != nil {
			s.metrics.IncEmailSent(s.transportName)
		}
		return s.advanceBatch(ctx, record.BatchID)
	}

	isTransient := mailer.IsTransient(sendErr)
	maxAttempts := record.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxSendAttempts
	}

	if isTransient && record.Attempts < maxAttempts {
		nextRetryAt := s.now().UTC().Add(s.computeRetryDelay(record.Attempts))
		if err := s.deliveries.ScheduleRetry(ctx, record.ID, nextRetryAt); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil
			}
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncRetryScheduled(s.transportName)
		}
		s.logger.Info("delivery scheduled for retry",
			zap.String("deliveryId", record.ID),
			zap.Int("attempt", record.Attempts),
			zap.Time("nextRetryAt", nextRetryAt),
			zap.Error(sendErr),
		)
		return nil
	}

	reason := sendErr.Error()
	metricReason := "permanent_error"
	if isTransient {
		reason = fmt.Sprintf("attempts exhausted: %s", sendErr.Error())
		metricReason = "retry_exhausted"
	}

	return s.failDelivery(ctx, record, reason, metricReason)
}

// releaseClaim returns the record to the queue's custody when the claim never
// reached the transport, so the broker redelivery does not burn an attempt.
func (s *WorkerService) releaseClaim(ctx context.Context, id string) {
	if err := s.deliveries.ReleaseClaim(ctx, id); err != nil {
		s.logger.Warn("failed to release delivery claim",
			zap.String("deliveryId", id),
			zap.Error(err),
		)
	}
}

func (s *WorkerService) failDelivery(
	ctx context.Context,
	record *domain.DeliveryRecord,
	reason string,
	metricReason string,
) error {
	did, err := s.deliveries.MarkFailed(ctx, record.ID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark delivery as failed: %w", err)
	}
	if !did {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncEmailFailed(s.transportName, metricReason)
	}
	s.logger.Warn("delivery failed",
		zap.String("deliveryId", record.ID),
		zap.String("reason", reason),
	)

	return s.advanceBatch(ctx, record.BatchID)
}

// advanceBatch bumps the batch's processed counter after a terminal
// transition and finalizes the batch once every record is accounted for.
func (s *WorkerService) advanceBatch(ctx context.Context, batchID string) error {
	batch, err := s.batches.IncrementProcessed(ctx, batchID)
	if err != nil {
		// Conflict means the counter already reached the total; another
		// worker finalized the batch.
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return fmt.Errorf("failed to increment batch progress: %w", err)
	}

	s.progress.PublishProgress(events.Progress{
		BatchID:   batch.ID,
		Processed: batch.ProcessedCount,
		Total:     batch.TotalCount,
	})

	if batch.ProcessedCount < batch.TotalCount {
		return nil
	}

	failedCount, err := s.deliveries.CountByBatchAndStatus(ctx, batchID, domain.DeliveryStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to count failed deliveries: %w", err)
	}

	finalStatus := domain.BatchStatusCompleted
	if failedCount > 0 {
		finalStatus = domain.BatchStatusPartialFailure
	}

	did, err := s.batches.UpdateStatusIf(ctx, batchID, domain.BatchStatusProcessing, finalStatus)
	if err != nil {
		return fmt.Errorf("failed to finalize batch: %w", err)
	}
	if !did {
		return nil
	}

	s.logger.Info("batch finalized",
		zap.String("batchId", batchID),
		zap.String("status", finalStatus.String()),
		zap.Int64("failed", failedCount),
	)
	s.progress.PublishCompletion(events.Completion{
		BatchID:     batchID,
		FinalStatus: finalStatus,
	})

	return nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WorkerService) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}
