package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/service"
	"github.com/luzdodia/api/pkg/response"
)

type ModeHandler struct {
	service   *service.ModeService
	validator *validator.Validate
}

func NewModeHandler(svc *service.ModeService, v *validator.Validate) *ModeHandler {
	return &ModeHandler{service: svc, validator: v}
}

// Get handles GET /api/mode
func (h *ModeHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, model.ModeResponse{
		Mode:  h.service.Mode(),
		Ready: h.service.Ready(c.UserContext()),
	})
}

// Put handles PUT /api/mode. Switching to live fails with 503 while a
// critical dependency is not configured.
func (h *ModeHandler) Put(c *fiber.Ctx) error {
	var req model.ModeRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	if err := h.service.Switch(c.UserContext(), req.Mode); err != nil {
		return fail(c, err)
	}
	return h.Get(c)
}
