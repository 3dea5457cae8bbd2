package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/health"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/pkg/response"
)

type HealthHandler struct {
	checker *health.Checker
	modes   pipeline.ModeSource
}

func NewHealthHandler(checker *health.Checker, modes pipeline.ModeSource) *HealthHandler {
	return &HealthHandler{checker: checker, modes: modes}
}

// Health handles GET /health. It always answers 200 while the process is
// up; "ready" tells whether live mode could be served.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	report := h.checker.Check(c.UserContext())

	services := fiber.Map{}
	for _, check := range report.Checks {
		services[check.Name] = check.OK
	}

	return response.OK(c, fiber.Map{
		"status":   "ok",
		"mode":     h.modes.Mode(),
		"ready":    report.Ready,
		"services": services,
		"checks":   report.Checks,
	})
}
