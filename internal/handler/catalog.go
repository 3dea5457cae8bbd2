package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/registry"
	"github.com/luzdodia/api/pkg/response"
)

type CatalogHandler struct {
	reg   *registry.Registry
	modes pipeline.ModeSource
}

func NewCatalogHandler(reg *registry.Registry, modes pipeline.ModeSource) *CatalogHandler {
	return &CatalogHandler{reg: reg, modes: modes}
}

// Models handles GET /api/catalog/models?roles=text-generation,image-generation
// @Summary      List models
// @Description  Models serving every requested role; no roles lists the whole catalog
// @Tags         Catalog
// @Produce      json
// @Param        roles query string false "Comma separated roles"
// @Success      200 {array} registry.ModelOption
// @Security     BearerAuth
// @Router       /api/catalog/models [get]
func (h *CatalogHandler) Models(c *fiber.Ctx) error {
	var roles []model.Role
	for _, r := range strings.Split(c.Query("roles"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, model.Role(r))
		}
	}
	return response.OK(c, h.reg.ModelsForRoles(roles...))
}

// Estimate handles GET /api/catalog/estimate?provider=&model=&units=&mode=
func (h *CatalogHandler) Estimate(c *fiber.Ctx) error {
	provider, modelID := c.Query("provider"), c.Query("model")
	if provider == "" || modelID == "" {
		return response.ValidationError(c, "provider and model are required", nil)
	}
	units := c.QueryInt("units", 0)
	if units < 0 {
		return response.ValidationError(c, "units must not be negative", nil)
	}

	mode := h.modes.Mode()
	if q := c.Query("mode"); q != "" {
		mode = model.Mode(q)
		if !mode.Valid() {
			return response.ValidationError(c, "mode must be simulated or live", nil)
		}
	}

	cost, err := h.reg.EstimateCost(provider, modelID, units, mode)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownModel) {
			return response.NotFound(c, err.Error())
		}
		return fail(c, err)
	}
	return response.OK(c, model.CostEstimateResponse{
		Provider: provider,
		Model:    modelID,
		Units:    units,
		Mode:     mode,
		Cost:     cost,
	})
}
