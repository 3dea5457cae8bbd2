package pipeline

import (
	"context"
	"time"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/poller"
)

const inconsistentMessage = "render reported done without a video"

// SubmitRender sends the scene timeline to the render provider and starts a
// new RenderJob. A job that is still running blocks a new submission.
func (o *Orchestrator) SubmitRender(ctx context.Context, s *model.PipelineSession) (*model.RenderJob, error) {
	if len(s.Studio.Scenes) == 0 {
		return nil, apperr.Validation("scenes", "build scenes before rendering")
	}
	if job := s.Studio.Render; job != nil && !job.Terminal() {
		return nil, apperr.Validation("render", "render %s is still %s", job.ID, job.Status)
	}

	title := topicOf(s)
	if w, ok := s.Creation.Winner(); ok {
		title = w.Title
	}

	a, err := o.action(s, model.ActionRenderVideo)
	if err != nil {
		return nil, err
	}
	res, err := o.runWith(ctx, s, model.ActionRenderVideo, client.Payload{Render: &client.RenderSpec{
		Title:       title,
		Scenes:      s.Studio.Scenes,
		AspectRatio: "9:16",
		Resolution:  "hd",
	}})
	if err != nil {
		return nil, err
	}

	cfg := o.poller.Config()
	job := &model.RenderJob{
		ID:          res.Job.ID,
		Provider:    a.Selection.Provider,
		Model:       a.Selection.Model,
		Status:      model.RenderSubmitted,
		SubmittedAt: o.clock.Now(),
		MaxAttempts: cfg.MaxAttempts,
		MaxWait:     cfg.MaxWait,
	}
	s.Studio.Render = job
	return job, nil
}

// TrackRender polls job until a terminal outcome. It reads nothing from the
// session so it can run outside the session lock.
func (o *Orchestrator) TrackRender(ctx context.Context, job model.RenderJob, mode model.Mode, observe poller.Observer) (poller.Result, error) {
	sel := model.Selection{Provider: job.Provider, Model: job.Model}
	return o.poller.Run(ctx, job.SubmittedAt, func(ctx context.Context) (poller.Status, error) {
		return o.exec.Poll(ctx, sel, job.ID, mode)
	}, observe)
}

// RecordPollAttempt stores progress of the tracked job. It returns false
// when the session no longer tracks jobID or the job already ended.
func RecordPollAttempt(s *model.PipelineSession, jobID string, attempts int) bool {
	job := s.Studio.Render
	if job == nil || job.ID != jobID || job.Terminal() {
		return false
	}
	job.Attempts = attempts
	job.Status = model.RenderProcessing
	return true
}

// ApplyRenderOutcome stores the terminal outcome of jobID. It returns false
// when the session moved on to another job or the job already ended.
func ApplyRenderOutcome(s *model.PipelineSession, jobID string, res poller.Result, now time.Time) bool {
	job := s.Studio.Render
	if job == nil || job.ID != jobID || job.Terminal() {
		return false
	}

	job.Attempts = res.Attempts
	job.CompletedAt = &now
	switch res.Outcome {
	case poller.OutcomeDone:
		job.Status = model.RenderDone
		job.ResultURL = res.ResultURL
		job.Error = ""
		s.Delivery.VideoURL = res.ResultURL
	case poller.OutcomeExplicitError:
		job.Status = model.RenderStatus(res.Last.State)
		if job.Status != model.RenderError {
			job.Status = model.RenderFailed
		}
		job.Error = res.Last.Message
		if job.Error == "" {
			job.Error = "render provider reported " + res.Last.State
		}
	case poller.OutcomeInconsistent:
		job.Status = model.RenderFailed
		job.Error = inconsistentMessage
	default:
		job.Status = model.RenderTimeout
		job.Error = res.String()
	}
	return true
}

// RenderFailure describes a terminal failed job as a RenderError, or nil
// for a job that succeeded or is still running.
func RenderFailure(job *model.RenderJob) error {
	if job == nil || !job.Terminal() || job.Status == model.RenderDone && job.ResultURL != "" {
		return nil
	}

	kind := apperr.RenderExplicitFailure
	switch {
	case job.Status == model.RenderTimeout:
		kind = apperr.RenderTimeout
	case job.Status == model.RenderDone, job.Error == inconsistentMessage:
		kind = apperr.RenderInconsistent
	}
	return &apperr.RenderError{
		Kind:     kind,
		JobID:    job.ID,
		Attempts: job.Attempts,
		Status:   string(job.Status),
		Message:  job.Error,
	}
}
