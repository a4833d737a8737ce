package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eraycetinay/mailblast/internal/queue"
	"github.com/eraycetinay/mailblast/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRetryScanInterval = 5 * time.Second
	defaultRetryScanLimit    = 100
)

// RetryScanner periodically re-enqueues due delivery records marked for
// retry. It publishes directly, without the enqueue guard: a retry is an
// intentional second enqueue of the same record.
type RetryScanner struct {
	deliveries repository.DeliveryRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	limit      int
}

func NewRetryScanner(
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		deliveries: deliveries,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		limit:      limit,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	dueRecords, err := s.deliveries.GetDueForRetry(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range dueRecords {
		record := dueRecords[i]
		msg := queue.DeliveryMessage{
			DeliveryID: record.ID,
			BatchID:    record.BatchID,
		}

		if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
			s.logger.Error("failed to enqueue retry delivery",
				zap.String("deliveryId", record.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.deliveries.ClearNextRetryAt(ctx, record.ID); err != nil {
			s.logger.Error("failed to clear next retry timestamp after enqueue",
				zap.String("deliveryId", record.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
