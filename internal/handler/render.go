package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/middleware"
	"github.com/luzdodia/api/internal/service"
	"github.com/luzdodia/api/pkg/response"
)

type RenderHandler struct {
	service *service.RenderService
}

func NewRenderHandler(svc *service.RenderService) *RenderHandler {
	return &RenderHandler{service: svc}
}

// Start handles POST /api/sessions/:id/studio/render
// @Summary      Start render job
// @Description  Submit the scene timeline to the render provider; progress is pushed on /ws/sessions/{id}
// @Tags         Studio
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      202 {object} model.RenderStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/studio/render [post]
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	result, err := h.service.StartRender(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return response.Accepted(c, result)
}

// Status handles GET /api/sessions/:id/studio/render
// @Summary      Get render job status
// @Tags         Studio
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.RenderStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/studio/render [get]
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, result)
}
