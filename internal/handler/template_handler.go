package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eraycetinay/mailblast/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type TemplateService interface {
	Create(ctx context.Context, template *domain.EmailTemplate) (*domain.EmailTemplate, error)
	GetByID(ctx context.Context, id, ownerID string) (*domain.EmailTemplate, error)
	List(ctx context.Context, ownerID string) ([]domain.EmailTemplate, error)
	Update(ctx context.Context, template *domain.EmailTemplate) (*domain.EmailTemplate, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type TemplateHandler struct {
	service TemplateService
}

func NewTemplateHandler(service TemplateService) (*TemplateHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("template service is required")
	}
	return &TemplateHandler{service: service}, nil
}

func RegisterTemplateRoutes(router fiber.Router, service TemplateService) error {
	h, err := NewTemplateHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates", h.CreateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:id", h.GetTemplate)
	v1.Put("/templates/:id", h.UpdateTemplate)
	v1.Delete("/templates/:id", h.DeleteTemplate)

	return nil
}

type templateRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type templateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.Context(), &domain.EmailTemplate{
		OwnerID: ownerID,
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(created))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	templates, err := h.service.List(c.Context(), ownerID)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]templateResponse, 0, len(templates))
	for i := range templates {
		responses = append(responses, toTemplateResponse(&templates[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	template, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")), ownerID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(template))
}

func (h *TemplateHandler) UpdateTemplate(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.Update(c.Context(), &domain.EmailTemplate{
		ID:      strings.TrimSpace(c.Params("id")),
		OwnerID: ownerID,
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(updated))
}

func (h *TemplateHandler) DeleteTemplate(c *fiber.Ctx) error {
	ownerID, err := requestOwnerID(c)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.Context(), id, ownerID); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toTemplateResponse(t *domain.EmailTemplate) templateResponse {
	if t == nil {
		return templateResponse{}
	}

	return templateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Subject:   t.Subject,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
