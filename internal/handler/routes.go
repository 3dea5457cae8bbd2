package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/middleware"
)

// Handlers groups every route handler of the API
type Handlers struct {
	Sessions *SessionHandler
	Render   *RenderHandler
	Catalog  *CatalogHandler
	Mode     *ModeHandler
	Health   *HealthHandler
	Auth     *AuthHandler
}

// Mount registers the HTTP routes. authenticate guards everything under
// /api.
func Mount(app *fiber.App, h Handlers, authenticate fiber.Handler, limiter *middleware.RateLimiter, limits config.RateLimitConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"name": "luzdodia-api", "timestamp": time.Now().Unix()})
	})
	app.Get("/health", h.Health.Health)
	app.Get("/auth/verify", h.Auth.Verify)

	api := app.Group("/api", authenticate)

	generate := limiter.GenerateLimit(limits.GeneratePerMin)

	catalog := api.Group("/catalog")
	catalog.Get("/models", h.Catalog.Models)
	catalog.Get("/estimate", h.Catalog.Estimate)

	api.Get("/mode", h.Mode.Get)
	api.Put("/mode", h.Mode.Put)

	sessions := api.Group("/sessions")
	sessions.Post("/", h.Sessions.Create)
	sessions.Get("/:id", h.Sessions.Get)
	sessions.Delete("/:id", h.Sessions.Delete)
	sessions.Put("/:id/trigger", h.Sessions.UpdateTrigger)
	sessions.Post("/:id/advance", generate, h.Sessions.Advance)
	sessions.Post("/:id/back", h.Sessions.Back)
	sessions.Post("/:id/regenerate", generate, h.Sessions.Regenerate)
	sessions.Get("/:id/actions", h.Sessions.Actions)
	sessions.Put("/:id/actions/:actionId", h.Sessions.SetAction)

	sessions.Post("/:id/trigger/enrich", generate, h.Sessions.EnrichCompetitors)

	sessions.Post("/:id/planning/draft", generate, h.Sessions.DraftPlan)
	sessions.Put("/:id/planning/plan", h.Sessions.EditPlan)
	sessions.Post("/:id/planning/approve", h.Sessions.ApprovePlan)

	sessions.Post("/:id/intelligence/research", generate, h.Sessions.Research)
	sessions.Post("/:id/intelligence/channel", generate, h.Sessions.AnalyzeChannel)
	sessions.Post("/:id/intelligence/competitors", generate, h.Sessions.AnalyzeCompetitors)

	sessions.Post("/:id/creation/options", generate, h.Sessions.GenerateOptions)
	sessions.Post("/:id/creation/thumbnails", generate, h.Sessions.GenerateThumbnails)
	sessions.Post("/:id/creation/thumbnails/:optionId", generate, h.Sessions.GenerateThumbnail)
	sessions.Post("/:id/creation/select", h.Sessions.SelectOption)
	sessions.Post("/:id/creation/script", generate, h.Sessions.GenerateScript)
	sessions.Put("/:id/creation/script", h.Sessions.EditScript)

	sessions.Post("/:id/studio/scenes", generate, h.Sessions.BuildScenes)
	sessions.Post("/:id/studio/render", limiter.RenderLimit(limits.RenderPerHour), h.Render.Start)
	sessions.Get("/:id/studio/render", h.Render.Status)
	sessions.Post("/:id/studio/manual", h.Sessions.ManualAssembly)

	sessions.Post("/:id/delivery/metadata", generate, h.Sessions.PrepareDelivery)
	sessions.Post("/:id/delivery/publish", limiter.PublishLimit(limits.PublishPerHour), h.Sessions.Publish)
}
