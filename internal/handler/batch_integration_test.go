package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/eraycetinay/mailblast/internal/repository"
	"github.com/eraycetinay/mailblast/internal/service"
	"github.com/eraycetinay/mailblast/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubBatchService struct {
	submitFn func(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error)
	getFn    func(ctx context.Context, ownerID, batchID string) (*service.BatchProgress, error)
	listFn   func(ctx context.Context, params repository.ListParams) ([]domain.DeliveryRecord, int64, error)
	statsFn  func(ctx context.Context, ownerID string, batchID *string) ([]repository.StatusCount, error)
}

func (s *stubBatchService) SubmitBatch(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error) {
	return s.submitFn(ctx, input)
}

func (s *stubBatchService) GetBatchProgress(ctx context.Context, ownerID, batchID string) (*service.BatchProgress, error) {
	return s.getFn(ctx, ownerID, batchID)
}

func (s *stubBatchService) ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.DeliveryRecord, int64, error) {
	return s.listFn(ctx, params)
}

func (s *stubBatchService) GetStats(ctx context.Context, ownerID string, batchID *string) ([]repository.StatusCount, error) {
	return s.statsFn(ctx, ownerID, batchID)
}

func newBatchTestApp(t *testing.T, svc BatchService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterBatchRoutes(app, svc); err != nil {
		t.Fatalf("RegisterBatchRoutes() error = %v", err)
	}
	return app
}

func multipartUpload(t *testing.T, fields map[string]string, filename, contentType string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField(%s) error = %v", key, err)
		}
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write(fileData); err != nil {
		t.Fatalf("part.Write() error = %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error = %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func performRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

func TestBatchHandlerSubmitBatch(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		submitFn: func(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error) {
			if input.OwnerID != "owner-1" {
				t.Fatalf("owner id = %q, want owner-1", input.OwnerID)
			}
			if input.TemplateID != "tpl-1" {
				t.Fatalf("template id = %q, want tpl-1", input.TemplateID)
			}
			if input.MimeType != "text/csv" {
				t.Fatalf("mime type = %q, want text/csv", input.MimeType)
			}
			return &domain.Batch{
				ID:         "b1",
				OwnerID:    input.OwnerID,
				TemplateID: input.TemplateID,
				TotalCount: 2,
				Status:     domain.BatchStatusProcessing,
			}, nil
		},
	}

	app := newBatchTestApp(t, svc)

	buf, contentType := multipartUpload(t,
		map[string]string{"templateId": "tpl-1"},
		"recipients.csv", "text/csv",
		[]byte("email\nalice@example.com\nbob@example.com\n"),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(ownerHeader, "owner-1")

	resp, body := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, string(body))
	}

	var parsed batchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.BatchID != "b1" || parsed.Status != "PROCESSING" || parsed.TotalCount != 2 {
		t.Fatalf("response = %+v", parsed)
	}
}

func TestBatchHandlerSubmitBatchRequiresOwnerHeader(t *testing.T) {
	t.Parallel()

	app := newBatchTestApp(t, &stubBatchService{})

	buf, contentType := multipartUpload(t, map[string]string{"templateId": "tpl-1"}, "r.csv", "text/csv", []byte("email\n"))
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestBatchHandlerSubmitBatchRequiresFile(t *testing.T) {
	t.Parallel()

	app := newBatchTestApp(t, &stubBatchService{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("templateId", "tpl-1")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(ownerHeader, "owner-1")

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBatchHandlerSubmitBatchValidationError(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		submitFn: func(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error) {
			return nil, domain.ErrValidation
		},
	}

	app := newBatchTestApp(t, svc)

	buf, contentType := multipartUpload(t, map[string]string{"templateId": "tpl-1"}, "r.csv", "text/csv", []byte("email\nnope\n"))
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(ownerHeader, "owner-1")

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBatchHandlerSubmitBatchQueueUnavailable(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		submitFn: func(ctx context.Context, input service.SubmitBatchInput) (*domain.Batch, error) {
			lastError := "failed to enqueue any delivery jobs"
			return &domain.Batch{
				ID:        "b-failed",
				Status:    domain.BatchStatusFailed,
				LastError: &lastError,
			}, context.DeadlineExceeded
		},
	}

	app := newBatchTestApp(t, svc)

	buf, contentType := multipartUpload(t, map[string]string{"templateId": "tpl-1"}, "r.csv", "text/csv", []byte("email\na@b.co\n"))
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", buf)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(ownerHeader, "owner-1")

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestBatchHandlerGetBatchProgress(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		getFn: func(ctx context.Context, ownerID, batchID string) (*service.BatchProgress, error) {
			if batchID != "b1" {
				t.Fatalf("batch id = %q, want b1", batchID)
			}
			return &service.BatchProgress{
				BatchID:   "b1",
				Status:    domain.BatchStatusProcessing,
				Total:     10,
				Processed: 4,
				Counts: []repository.StatusCount{
					{Status: domain.DeliveryStatusSuccess, Count: 3},
					{Status: domain.DeliveryStatusFailed, Count: 1},
				},
			}, nil
		},
	}

	app := newBatchTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/b1", nil)
	req.Header.Set(ownerHeader, "owner-1")

	resp, body := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed batchProgressResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Processed != 4 || parsed.Total != 10 || len(parsed.Counts) != 2 {
		t.Fatalf("response = %+v", parsed)
	}
}

func TestBatchHandlerGetBatchProgressNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		getFn: func(ctx context.Context, ownerID, batchID string) (*service.BatchProgress, error) {
			return nil, domain.ErrNotFound
		},
	}

	app := newBatchTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/nope", nil)
	req.Header.Set(ownerHeader, "owner-1")

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestBatchHandlerListDeliveriesParsesFilters(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		listFn: func(ctx context.Context, params repository.ListParams) ([]domain.DeliveryRecord, int64, error) {
			if params.Status == nil || *params.Status != domain.DeliveryStatusFailed {
				t.Fatalf("status filter = %v, want FAILED", params.Status)
			}
			if params.BatchID == nil || *params.BatchID != "b1" {
				t.Fatalf("batch filter = %v, want b1", params.BatchID)
			}
			if params.Page != 2 || params.PageSize != 25 {
				t.Fatalf("pagination = %d/%d, want 2/25", params.Page, params.PageSize)
			}
			return []domain.DeliveryRecord{
				{ID: "d1", BatchID: "b1", Recipient: "alice@example.com", Status: domain.DeliveryStatusFailed},
			}, 1, nil
		},
	}

	app := newBatchTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries?status=failed&batchId=b1&page=2&pageSize=25", nil)
	req.Header.Set(ownerHeader, "owner-1")

	resp, body := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed listDeliveriesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 1 || parsed.Meta.Total != 1 {
		t.Fatalf("response = %+v", parsed)
	}
}

func TestBatchHandlerListDeliveriesRejectsBadStatus(t *testing.T) {
	t.Parallel()

	app := newBatchTestApp(t, &stubBatchService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries?status=bogus", nil)
	req.Header.Set(ownerHeader, "owner-1")

	resp, _ := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBatchHandlerGetStats(t *testing.T) {
	t.Parallel()

	svc := &stubBatchService{
		statsFn: func(ctx context.Context, ownerID string, batchID *string) ([]repository.StatusCount, error) {
			if batchID != nil {
				t.Fatalf("batch id = %v, want nil", batchID)
			}
			return []repository.StatusCount{
				{Status: domain.DeliveryStatusSuccess, Count: 7},
				{Status: domain.DeliveryStatusPending, Count: 3},
			}, nil
		},
	}

	app := newBatchTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set(ownerHeader, "owner-1")

	resp, body := performRequest(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed statsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Counts) != 2 {
		t.Fatalf("counts = %d, want 2", len(parsed.Counts))
	}
}
