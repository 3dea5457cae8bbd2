package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/middleware"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/service"
	"github.com/luzdodia/api/pkg/response"
)

// ActionResponse is returned by every session operation
type ActionResponse struct {
	Session *model.PipelineSession `json:"session"`
	Result  interface{}            `json:"result,omitempty"`
}

type SessionHandler struct {
	sessions  *service.SessionService
	orch      *pipeline.Orchestrator
	validator *validator.Validate
}

func NewSessionHandler(sessions *service.SessionService, orch *pipeline.Orchestrator, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		orch:      orch,
		validator: v,
	}
}

// mutate runs op on the session named by :id under its lock and replies
// with the saved session and op's result.
func (h *SessionHandler) mutate(c *fiber.Ctx, op func(ctx context.Context, s *model.PipelineSession) (interface{}, error)) error {
	ctx := c.UserContext()
	var result interface{}
	session, err := h.sessions.Mutate(ctx, c.Params("id"), middleware.GetUserID(c), func(s *model.PipelineSession) error {
		var err error
		result, err = op(ctx, s)
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, ActionResponse{Session: session, Result: result})
}

type runner func(ctx context.Context, s *model.PipelineSession) (*executor.Result, error)

// action adapts an orchestrator runner to a handler
func (h *SessionHandler) action(run runner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.mutate(c, func(ctx context.Context, s *model.PipelineSession) (interface{}, error) {
			res, err := run(ctx, s)
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}

// Create handles POST /api/sessions
// @Summary      Create session
// @Description  Start a production in the Trigger phase
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        request body model.TriggerRequest true "Trigger"
// @Success      201 {object} model.PipelineSession
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions [post]
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req model.TriggerRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	session, err := h.sessions.Create(c.UserContext(), middleware.GetUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return response.Created(c, session)
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, session)
}

// Delete handles DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return response.NoContent(c)
}

// UpdateTrigger handles PUT /api/sessions/:id/trigger
func (h *SessionHandler) UpdateTrigger(c *fiber.Ctx) error {
	var req model.TriggerRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		pipeline.UpdateTrigger(s, req)
		return nil, nil
	})
}

// Advance handles POST /api/sessions/:id/advance
// @Summary      Advance phase
// @Description  Move to the next phase when every phase so far is ready
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.PipelineSession
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/advance [post]
func (h *SessionHandler) Advance(c *fiber.Ctx) error {
	session, err := h.sessions.Advance(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, session)
}

// Back handles POST /api/sessions/:id/back
func (h *SessionHandler) Back(c *fiber.Ctx) error {
	var req model.GoBackRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.GoBack(s, req.Phase)
	})
}

// Regenerate handles POST /api/sessions/:id/regenerate
// @Summary      Regenerate one field
// @Description  Replace exactly one field of one phase; field names are accepted in English or Portuguese
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body model.RegenerateRequest true "Field"
// @Success      200 {object} ActionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/regenerate [post]
func (h *SessionHandler) Regenerate(c *fiber.Ctx) error {
	var req model.RegenerateRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.action(func(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
		return h.orch.Regenerate(ctx, s, req.Phase, req.Field)
	})(c)
}

// Actions handles GET /api/sessions/:id/actions
func (h *SessionHandler) Actions(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	costs, err := h.orch.EstimateSession(session)
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, costs)
}

// SetAction handles PUT /api/sessions/:id/actions/:actionId
func (h *SessionHandler) SetAction(c *fiber.Ctx) error {
	var req model.Selection
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	id := model.ActionID(c.Params("actionId"))
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		a, err := h.orch.SetSelection(s, id, req)
		if err != nil {
			return nil, err
		}
		cost, err := h.orch.EstimateAction(s, id)
		if err != nil {
			return nil, err
		}
		return model.ActionCost{Action: a, EstimatedCost: cost, Mode: h.orch.Mode()}, nil
	})
}

// EnrichCompetitors handles POST /api/sessions/:id/trigger/enrich
func (h *SessionHandler) EnrichCompetitors(c *fiber.Ctx) error {
	return h.action(h.orch.EnrichCompetitors)(c)
}

// DraftPlan handles POST /api/sessions/:id/planning/draft
func (h *SessionHandler) DraftPlan(c *fiber.Ctx) error {
	return h.action(h.orch.DraftPlan)(c)
}

// EditPlan handles PUT /api/sessions/:id/planning/plan
func (h *SessionHandler) EditPlan(c *fiber.Ctx) error {
	var req model.TextRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.EditPlan(s, req.Text)
	})
}

// ApprovePlan handles POST /api/sessions/:id/planning/approve
func (h *SessionHandler) ApprovePlan(c *fiber.Ctx) error {
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.ApprovePlanning(s, h.orch.Now())
	})
}

// Research handles POST /api/sessions/:id/intelligence/research
func (h *SessionHandler) Research(c *fiber.Ctx) error {
	return h.action(h.orch.Research)(c)
}

// AnalyzeChannel handles POST /api/sessions/:id/intelligence/channel
func (h *SessionHandler) AnalyzeChannel(c *fiber.Ctx) error {
	return h.action(h.orch.AnalyzeChannel)(c)
}

// AnalyzeCompetitors handles POST /api/sessions/:id/intelligence/competitors
func (h *SessionHandler) AnalyzeCompetitors(c *fiber.Ctx) error {
	return h.action(h.orch.AnalyzeCompetitors)(c)
}

// GenerateOptions handles POST /api/sessions/:id/creation/options
func (h *SessionHandler) GenerateOptions(c *fiber.Ctx) error {
	return h.action(h.orch.GenerateOptions)(c)
}

// GenerateThumbnails handles POST /api/sessions/:id/creation/thumbnails.
// A failed slot is reported in its outcome and does not fail the batch.
func (h *SessionHandler) GenerateThumbnails(c *fiber.Ctx) error {
	return h.mutate(c, func(ctx context.Context, s *model.PipelineSession) (interface{}, error) {
		outcomes, err := h.orch.GenerateThumbnails(ctx, s)
		if err != nil {
			return nil, err
		}
		return outcomes, nil
	})
}

// GenerateThumbnail handles POST /api/sessions/:id/creation/thumbnails/:optionId
func (h *SessionHandler) GenerateThumbnail(c *fiber.Ctx) error {
	optionID := c.Params("optionId")
	return h.action(func(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
		return h.orch.GenerateThumbnail(ctx, s, optionID)
	})(c)
}

// SelectOption handles POST /api/sessions/:id/creation/select
func (h *SessionHandler) SelectOption(c *fiber.Ctx) error {
	var req model.SelectOptionRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.SelectOption(s, req.OptionID)
	})
}

// GenerateScript handles POST /api/sessions/:id/creation/script
func (h *SessionHandler) GenerateScript(c *fiber.Ctx) error {
	return h.action(h.orch.GenerateScript)(c)
}

// EditScript handles PUT /api/sessions/:id/creation/script
func (h *SessionHandler) EditScript(c *fiber.Ctx) error {
	var req model.TextRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.EditScript(s, req.Text)
	})
}

// BuildScenes handles POST /api/sessions/:id/studio/scenes
func (h *SessionHandler) BuildScenes(c *fiber.Ctx) error {
	return h.action(h.orch.BuildScenes)(c)
}

// ManualAssembly handles POST /api/sessions/:id/studio/manual
func (h *SessionHandler) ManualAssembly(c *fiber.Ctx) error {
	return h.mutate(c, func(_ context.Context, s *model.PipelineSession) (interface{}, error) {
		return nil, pipeline.AcknowledgeManualAssembly(s)
	})
}

// PrepareDelivery handles POST /api/sessions/:id/delivery/metadata
func (h *SessionHandler) PrepareDelivery(c *fiber.Ctx) error {
	return h.action(h.orch.PrepareDelivery)(c)
}

// Publish handles POST /api/sessions/:id/delivery/publish
// @Summary      Publish video
// @Description  Upload the rendered video with the prepared metadata; a session publishes at most once
// @Tags         Delivery
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body model.PublishRequest false "Privacy"
// @Success      200 {object} ActionResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/delivery/publish [post]
func (h *SessionHandler) Publish(c *fiber.Ctx) error {
	var req model.PublishRequest
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validator, &req); !ok {
			return err
		}
	}
	return h.action(func(ctx context.Context, s *model.PipelineSession) (*executor.Result, error) {
		return h.orch.Publish(ctx, s, req.Privacy)
	})(c)
}
