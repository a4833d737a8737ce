package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/eraycetinay/mailblast/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	// ownerHeader identifies the caller; upstream auth is expected to set it.
	ownerHeader = "X-User-ID"

	maxUploadBytes = 10 << 20
)

type BatchService interface {
	SubmitBatch(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error)
	GetBatchProgress(ctx context.Context, ownerID, batchID string) (*service.BatchProgress, error)
	ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.DeliveryRecord, int64, error)
	GetStats(ctx context.Context, ownerID string, batchID *string) ([]repository.StatusCount, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.SubmitBatch)
	v1.Get("/batches/:batchId", h.GetBatchProgress)
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/stats", h.GetStats)

	return nil
}

type batchResponse struct {
	BatchID    string  `json:"batchId"`
	TemplateID string  `json:"templateId"`
	Status     string  `json:"status"`
	TotalCount int     `json:"totalCount"`
	Processed  int     `json:"processedCount"`
	LastError  *string `json:"lastError,omitempty"`
}

type batchProgressResponse struct {
	BatchID   string            `json:"batchId"`
	Status    string            `json:"status"`
	Total     int               `json:"totalCount"`
	Processed int               `json:"processedCount"`
	Counts    []statusCountItem `json:"counts"`
	LastError *string           `json:"lastError,omitempty"`
}

type statusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type deliveryResponse struct {
	ID          string     `json:"id"`
	BatchID     string     `json:"batchId"`
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type statsResponse struct {
	Counts []statusCountItem `json:"counts"`
}

func (h *BatchHandler) SubmitBatch(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "uploaded file is too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
	}
	if len(data) > maxUploadBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "uploaded file is too large")
	}

	batch, err := h.service.SubmitBatch(c.Context(), service.SubmitBatchInput{
		OwnerID:    ownerID,
		TemplateID: c.FormValue("templateId"),
		FileData:   data,
		MimeType:   uploadMimeType(fileHeader.Header.Get(fiber.HeaderContentType), fileHeader.Filename),
		Column:     c.FormValue("column"),
	})
	if err != nil {
		if batch != nil && batch.Status == domain.BatchStatusFailed {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(batchResponse{
		BatchID:    batch.ID,
		TemplateID: batch.TemplateID,
		Status:     batch.Status.String(),
		TotalCount: batch.TotalCount,
		Processed:  batch.ProcessedCount,
		LastError:  batch.LastError,
	})
}

func (h *BatchHandler) GetBatchProgress(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	batchID := strings.TrimSpace(c.Params("batchId"))
	progress, err := h.service.GetBatchProgress(c.Context(), ownerID, batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(batchProgressResponse{
		BatchID:   progress.BatchID,
		Status:    progress.Status.String(),
		Total:     progress.Total,
		Processed: progress.Processed,
		Counts:    toStatusCountItems(progress.Counts),
		LastError: progress.LastError,
	})
}

func (h *BatchHandler) ListDeliveries(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	params, err := parseListParams(c, ownerID)
	if err != nil {
		return toHTTPError(err)
	}

	records, total, err := h.service.ListDeliveries(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: toDeliveryResponses(records),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *BatchHandler) GetStats(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	var batchID *string
	if raw := strings.TrimSpace(c.Query("batchId")); raw != "" {
		batchID = &raw
	}

	counts, err := h.service.GetStats(c.Context(), ownerID, batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Counts: toStatusCountItems(counts),
	})
}

func parseListParams(c *fiber.Ctx, ownerID string) (repository.ListParams, error) {
	params := repository.ListParams{
		OwnerID:  ownerID,
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseDeliveryStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawBatch := strings.TrimSpace(c.Query("batchId")); rawBatch != "" {
		params.BatchID = &rawBatch
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func uploadMimeType(headerValue, filename string) string {
	if trimmed := strings.TrimSpace(headerValue); trimmed != "" && trimmed != "application/octet-stream" {
		return trimmed
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return strings.TrimSpace(headerValue)
}

func requestOwnerID(c *fiber.Ctx) (string, error) {
	ownerID := strings.TrimSpace(c.Get(ownerHeader))
	if ownerID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing "+ownerHeader+" header")
	}
	return ownerID, nil
}

func toStatusCountItems(counts []repository.StatusCount) []statusCountItem {
	items := make([]statusCountItem, 0, len(counts))
	for _, count := range counts {
		items = append(items, statusCountItem{
			Status: count.Status.String(),
			Count:  count.Count,
		})
	}
	return items
}

func toDeliveryResponses(records []domain.DeliveryRecord) []deliveryResponse {
	responses := make([]deliveryResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, deliveryResponse{
			ID:          record.ID,
			BatchID:     record.BatchID,
			Recipient:   record.Recipient,
			Subject:     record.Subject,
			Status:      record.Status.String(),
			Error:       record.Error,
			SentAt:      record.SentAt,
			Attempts:    record.Attempts,
			MaxAttempts: record.MaxAttempts,
			NextRetryAt: record.NextRetryAt,
			CreatedAt:   record.CreatedAt,
			UpdatedAt:   record.UpdatedAt,
		})
	}
	return responses
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
