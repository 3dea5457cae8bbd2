package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/metrics"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/service"
)

// Notifier pushes render events to session watchers
type Notifier interface {
	BroadcastProgress(msg model.WSProgressMessage)
	BroadcastComplete(msg model.WSCompleteMessage)
	BroadcastError(msg model.WSErrorMessage)
}

// RenderWorker tracks submitted render jobs to a terminal outcome
type RenderWorker struct {
	renders *service.RenderService
	orch    *pipeline.Orchestrator
	hub     Notifier
	metrics *metrics.Metrics
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(renders *service.RenderService, orch *pipeline.Orchestrator, hub Notifier, m *metrics.Metrics) *RenderWorker {
	return &RenderWorker{
		renders: renders,
		orch:    orch,
		hub:     hub,
		metrics: m,
	}
}

// ProcessTask handles studio:track-render tasks
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TrackRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	return w.Track(ctx, payload)
}

// Track polls one job and stores its outcome. Poll progress is persisted
// after every attempt; the session lock is never held while waiting.
func (w *RenderWorker) Track(ctx context.Context, payload model.TrackRenderPayload) error {
	job, ok, err := w.renders.Job(ctx, payload.SessionID, payload.JobID)
	if err != nil {
		if apperr.IsNotFound(err) {
			slog.Info("session gone, skipping render tracking", "session", payload.SessionID, "job", payload.JobID)
			return nil
		}
		return err
	}
	if !ok {
		slog.Info("render job no longer tracked", "session", payload.SessionID, "job", payload.JobID)
		return nil
	}

	slog.Info("tracking render", "session", payload.SessionID, "job", job.ID, "provider", job.Provider, "mode", payload.Mode)

	// Executor.Poll counts every poll; the observer only reports them.
	observe := func(attempts int, st poller.Status, pollErr error) {
		if pollErr != nil {
			slog.Warn("render poll failed", "session", payload.SessionID, "job", job.ID, "attempt", attempts, "error", pollErr)
		}
		if _, err := w.renders.RecordAttempt(ctx, payload.SessionID, job.ID, attempts); err != nil {
			slog.Warn("failed to record render attempt", "session", payload.SessionID, "job", job.ID, "error", err)
		}
		w.hub.BroadcastProgress(model.WSProgressMessage{
			Type:        model.WSMessageTypeProgress,
			SessionID:   payload.SessionID,
			JobID:       job.ID,
			Status:      model.RenderProcessing,
			Attempt:     attempts,
			MaxAttempts: job.MaxAttempts,
		})
	}

	res, err := w.orch.TrackRender(ctx, *job, payload.Mode, observe)
	if err != nil {
		// Cancelled, usually by shutdown. The job stays non-terminal.
		slog.Warn("render tracking interrupted", "session", payload.SessionID, "job", job.ID, "error", err)
		return err
	}

	// The task context may be near its deadline; storing the outcome must
	// not be cut short by it.
	final, err := w.renders.Complete(context.WithoutCancel(ctx), payload.SessionID, job.ID, res)
	if err != nil {
		slog.Error("failed to store render outcome", "session", payload.SessionID, "job", job.ID, "error", err)
		return err
	}
	if final == nil {
		slog.Info("render outcome discarded, session moved on", "session", payload.SessionID, "job", job.ID)
		return nil
	}

	w.metrics.RenderOutcome(string(res.Outcome))
	if failure := pipeline.RenderFailure(final); failure != nil {
		slog.Warn("render failed", "session", payload.SessionID, "job", final.ID, "status", final.Status, "attempts", final.Attempts, "error", failure)
		var renderErr *apperr.RenderError
		code := "RENDER_FAILED"
		if errors.As(failure, &renderErr) && renderErr.Kind == apperr.RenderTimeout {
			code = "RENDER_TIMEOUT"
		}
		w.hub.BroadcastError(model.WSErrorMessage{
			Type:      model.WSMessageTypeError,
			SessionID: payload.SessionID,
			Error:     model.WSError{Code: code, Message: failure.Error()},
		})
		return nil
	}

	slog.Info("render completed", "session", payload.SessionID, "job", final.ID, "attempts", final.Attempts, "url", final.ResultURL)
	w.hub.BroadcastComplete(model.WSCompleteMessage{
		Type:      model.WSMessageTypeComplete,
		SessionID: payload.SessionID,
		Render:    final,
	})
	return nil
}
