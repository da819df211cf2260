package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lessonforge/api/internal/library"
	"github.com/lessonforge/api/pkg/response"
)

type LibraryHandler struct {
	library *library.Library
}

func NewLibraryHandler(lib *library.Library) *LibraryHandler {
	return &LibraryHandler{library: lib}
}

// List handles GET /api/library
func (h *LibraryHandler) List(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"starters": h.library.List()})
}

// Get handles GET /api/library/:name
func (h *LibraryHandler) Get(c *fiber.Ctx) error {
	starter, err := h.library.Get(c.Params("name"))
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return response.NotFound(c, "Starter manifest not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, starter)
}
