package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
)

// Enqueuer queues background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// errStaleJob aborts a mutation for a job the session no longer tracks.
var errStaleJob = errors.New("render job is no longer tracked")

// RenderService submits render jobs and records their tracking progress
type RenderService struct {
	sessions *SessionService
	orch     *pipeline.Orchestrator
	queue    Enqueuer
}

func NewRenderService(sessions *SessionService, orch *pipeline.Orchestrator, queue Enqueuer) *RenderService {
	return &RenderService{
		sessions: sessions,
		orch:     orch,
		queue:    queue,
	}
}

// StartRender submits the session's scenes and queues tracking of the job.
func (s *RenderService) StartRender(ctx context.Context, sessionID, actor string) (*model.RenderStartResponse, error) {
	var job model.RenderJob
	mode := s.orch.Mode()
	_, err := s.sessions.Mutate(ctx, sessionID, actor, func(session *model.PipelineSession) error {
		submitted, err := s.orch.SubmitRender(ctx, session)
		if err != nil {
			return err
		}
		job = *submitted
		return nil
	})
	if err != nil {
		return nil, err
	}

	task, err := newTrackRenderTask(model.TrackRenderPayload{SessionID: sessionID, JobID: job.ID, Mode: mode})
	if err == nil {
		_, err = s.queue.EnqueueContext(ctx, task,
			asynq.Queue("render"),
			asynq.MaxRetry(0),
			asynq.Timeout(job.MaxWait+time.Minute),
			asynq.Retention(24*time.Hour),
		)
	}
	if err != nil {
		s.abandon(ctx, sessionID, job.ID, err)
		return nil, fmt.Errorf("failed to enqueue render tracking: %w", err)
	}

	slog.Info("render submitted", "session", sessionID, "job", job.ID, "provider", job.Provider, "mode", mode)
	return &model.RenderStartResponse{
		SessionID:   sessionID,
		JobID:       job.ID,
		Status:      job.Status,
		MaxAttempts: job.MaxAttempts,
		MaxWaitSec:  int(job.MaxWait / time.Second),
		SubmittedAt: job.SubmittedAt,
	}, nil
}

// abandon marks a job nobody will track as failed so a new one can start.
func (s *RenderService) abandon(ctx context.Context, sessionID, jobID string, cause error) {
	_, err := s.sessions.Mutate(context.WithoutCancel(ctx), sessionID, "", func(session *model.PipelineSession) error {
		job := session.Studio.Render
		if job == nil || job.ID != jobID || job.Terminal() {
			return errStaleJob
		}
		now := s.orch.Now()
		job.Status = model.RenderError
		job.Error = "tracking could not be queued: " + cause.Error()
		job.CompletedAt = &now
		return nil
	})
	if err != nil && !errors.Is(err, errStaleJob) {
		slog.Error("failed to abandon render job", "session", sessionID, "job", jobID, "error", err)
	}
}

// Status reports the tracked render job of a session.
func (s *RenderService) Status(ctx context.Context, sessionID string) (*model.RenderStatusResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.RenderStatusResponse{
		SessionID:      session.ID,
		Render:         session.Studio.Render,
		ManualAssembly: session.Studio.ManualAssembly,
	}, nil
}

// Job returns the tracked job when it is jobID and still running.
func (s *RenderService) Job(ctx context.Context, sessionID, jobID string) (*model.RenderJob, bool, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	job := session.Studio.Render
	if job == nil || job.ID != jobID || job.Terminal() {
		return nil, false, nil
	}
	return job, true, nil
}

// RecordAttempt persists the poll count of a running job. It reports false
// when the session moved on.
func (s *RenderService) RecordAttempt(ctx context.Context, sessionID, jobID string, attempts int) (bool, error) {
	_, err := s.sessions.Mutate(ctx, sessionID, "", func(session *model.PipelineSession) error {
		if !pipeline.RecordPollAttempt(session, jobID, attempts) {
			return errStaleJob
		}
		return nil
	})
	if errors.Is(err, errStaleJob) {
		return false, nil
	}
	return err == nil, err
}

// Complete stores the terminal outcome of jobID and returns the final job.
// A nil job means the outcome was stale and nothing changed.
func (s *RenderService) Complete(ctx context.Context, sessionID, jobID string, res poller.Result) (*model.RenderJob, error) {
	var job *model.RenderJob
	_, err := s.sessions.Mutate(ctx, sessionID, "", func(session *model.PipelineSession) error {
		if !pipeline.ApplyRenderOutcome(session, jobID, res, s.orch.Now()) {
			return errStaleJob
		}
		job = session.Studio.Render
		return nil
	})
	if errors.Is(err, errStaleJob) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func newTrackRenderTask(payload model.TrackRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(model.TaskTypeTrackRender, data), nil
}
