package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/service"
	"github.com/lessonforge/api/internal/timing"
	"github.com/lessonforge/api/pkg/response"
)

type ManifestHandler struct {
	service   *service.ManifestService
	validator *validator.Validate
}

func NewManifestHandler(svc *service.ManifestService, v *validator.Validate) *ManifestHandler {
	return &ManifestHandler{
		service:   svc,
		validator: v,
	}
}

// Validate handles POST /api/manifests/validate. The body is the manifest
// itself; ?partial=true validates an in-progress draft. The result is
// returned with 200 whether or not the manifest is valid.
func (h *ManifestHandler) Validate(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return response.ValidationError(c, "Request body is required", nil)
	}

	result := h.service.Validate(c.UserContext(), c.Body(), c.QueryBool("partial"))
	return response.OK(c, result)
}

// Analyze handles POST /api/manifests/analyze
func (h *ManifestHandler) Analyze(c *fiber.Ctx) error {
	var req model.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	record, err := h.service.Analyze(c.UserContext(), req.Manifest, req.Narration)
	if err != nil {
		return manifestError(c, err)
	}

	return response.OK(c, record)
}

// manifestError maps manifest and narration failures onto the error envelope.
func manifestError(c *fiber.Ctx, err error) error {
	var invalid *service.ManifestError
	switch {
	case errors.As(err, &invalid):
		return response.ManifestInvalid(c, fiber.Map{
			"errors":   invalid.Result.Errors,
			"warnings": invalid.Result.Warnings,
		})
	case errors.Is(err, timing.ErrInvalidNarration):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrNarrationUnavailable):
		return response.UpstreamError(c, "Speech service unavailable")
	default:
		return response.ServiceError(c, err.Error())
	}
}
