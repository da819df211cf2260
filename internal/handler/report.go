package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/service"
	"github.com/lessonforge/api/pkg/response"
)

type ReportHandler struct {
	service   *service.ReportService
	validator *validator.Validate
}

func NewReportHandler(svc *service.ReportService, v *validator.Validate) *ReportHandler {
	return &ReportHandler{
		service:   svc,
		validator: v,
	}
}

// Summary handles GET /api/reports/summary
func (h *ReportHandler) Summary(c *fiber.Ctx) error {
	var q model.ReportQuery
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	report, err := h.service.Summary(c.UserContext(), &q)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, report)
}
