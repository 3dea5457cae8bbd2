package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
)

var t0 = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

type recordingHub struct {
	mu       sync.Mutex
	sessions []model.WSSessionMessage
}

func (h *recordingHub) BroadcastSession(msg model.WSSessionMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, msg)
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

type recordingQueue struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (q *recordingQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fixture struct {
	store    *MemorySessionStore
	sessions *SessionService
	renders  *RenderService
	orch     *pipeline.Orchestrator
	hub      *recordingHub
	queue    *recordingQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.Default()
	clock := poller.NewFakeClock(t0)
	exec := executor.New(reg, nil, executor.Settings{Clock: clock, SimulatedRenderPolls: 2})
	orch := pipeline.New(reg, exec, pipeline.StaticMode(model.ModeSimulated), pipeline.Options{
		Poller: poller.Config{MaxAttempts: 60, Interval: 5 * time.Second},
		Clock:  clock,
	})

	f := &fixture{
		store: NewMemorySessionStore(),
		orch:  orch,
		hub:   &recordingHub{},
		queue: &recordingQueue{},
	}
	f.sessions = NewSessionService(f.store, orch, reg, f.hub, time.Second)
	f.renders = NewRenderService(f.sessions, orch, f.queue)
	return f
}

func (f *fixture) withScenes(t *testing.T) *model.PipelineSession {
	t.Helper()
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Oração da manhã"})
	require.NoError(t, err)
	s, err = f.sessions.Mutate(ctx, s.ID, "user-1", func(s *model.PipelineSession) error {
		s.CurrentPhase = model.PhaseStudio
		s.Studio.Scenes = []model.Scene{{Index: 0, Start: 0, End: 30, Narration: "Senhor, obrigado por este dia."}}
		return nil
	})
	require.NoError(t, err)
	return s
}

func TestCreateNormalizesTrigger(t *testing.T) {
	f := newFixture(t)
	s, err := f.sessions.Create(context.Background(), "user-1", model.TriggerRequest{Topic: "  Salmo 23  "})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Salmo 23", s.Trigger.Topic)
	assert.Equal(t, model.PhaseTrigger, s.CurrentPhase)
	assert.Equal(t, "user-1", s.Owner)

	loaded, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Trigger, loaded.Trigger)
}

func TestGetUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Get(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestMutateDiscardsFailedChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Fé"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = f.sessions.Mutate(ctx, s.ID, "user-2", func(s *model.PipelineSession) error {
		s.Trigger.Topic = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := f.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fé", loaded.Trigger.Topic)
	assert.Equal(t, "user-1", loaded.UpdatedBy)
	assert.Equal(t, 0, f.hub.count())

	_, err = f.sessions.Mutate(ctx, s.ID, "user-2", func(s *model.PipelineSession) error {
		s.Trigger.Topic = "Esperança"
		return nil
	})
	require.NoError(t, err)
	loaded, err = f.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Esperança", loaded.Trigger.Topic)
	assert.Equal(t, "user-2", loaded.UpdatedBy)
	assert.Equal(t, 1, f.hub.count())
}

func TestMutateSerializesWriters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Paz"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sessions.Mutate(ctx, s.ID, "user-1", func(s *model.PipelineSession) error {
				s.Intelligence.Facts = append(s.Intelligence.Facts, "fato")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := f.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Intelligence.Facts, 20)
}

func TestLockTimesOutWhenBusy(t *testing.T) {
	f := newFixture(t)
	f.sessions.lockWait = 20 * time.Millisecond
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Paz"})
	require.NoError(t, err)

	unlock, err := f.store.Lock(ctx, s.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = f.sessions.Mutate(ctx, s.ID, "user-2", func(*model.PipelineSession) error { return nil })
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestAdvanceDraftsPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Oração da manhã"})
	require.NoError(t, err)

	s, err = f.sessions.Advance(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.PhasePlanning, s.CurrentPhase)
	assert.NotEmpty(t, s.Planning.Plan)
	assert.False(t, s.Planning.Dirty())
	assert.False(t, s.Planning.Approved)

	_, err = f.sessions.Advance(ctx, s.ID, "user-1")
	assert.True(t, apperr.IsValidation(err))
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Paz"})
	require.NoError(t, err)

	require.NoError(t, f.sessions.Delete(ctx, s.ID))
	assert.True(t, apperr.IsNotFound(f.sessions.Delete(ctx, s.ID)))
}

type recordingCleaner struct {
	prefixes []string
	err      error
}

func (r *recordingCleaner) DeletePrefix(_ context.Context, prefix string) (int, error) {
	r.prefixes = append(r.prefixes, prefix)
	return 3, r.err
}

func TestDeleteSessionRemovesAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cleaner := &recordingCleaner{}
	f.sessions.WithAssetCleaner(cleaner)

	s, err := f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Paz"})
	require.NoError(t, err)
	require.NoError(t, f.sessions.Delete(ctx, s.ID))
	assert.Equal(t, []string{"sessions/" + s.ID + "/"}, cleaner.prefixes)

	// storage failures do not fail the delete
	cleaner.err = errors.New("bucket unreachable")
	s, err = f.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Paz"})
	require.NoError(t, err)
	require.NoError(t, f.sessions.Delete(ctx, s.ID))

	// a missing session never reaches storage
	assert.True(t, apperr.IsNotFound(f.sessions.Delete(ctx, "missing")))
	assert.Len(t, cleaner.prefixes, 2)
}

func TestStartRenderQueuesTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.withScenes(t)

	resp, err := f.renders.StartRender(ctx, s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, resp.SessionID)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, model.RenderSubmitted, resp.Status)
	assert.Equal(t, 60, resp.MaxAttempts)
	assert.Equal(t, 300, resp.MaxWaitSec)

	require.Len(t, f.queue.tasks, 1)
	task := f.queue.tasks[0]
	assert.Equal(t, model.TaskTypeTrackRender, task.Type())
	var payload model.TrackRenderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, model.TrackRenderPayload{SessionID: s.ID, JobID: resp.JobID, Mode: model.ModeSimulated}, payload)

	// a running job blocks another submission
	_, err = f.renders.StartRender(ctx, s.ID, "user-1")
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, f.queue.tasks, 1)

	status, err := f.renders.Status(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Render)
	assert.Equal(t, resp.JobID, status.Render.ID)
}

func TestStartRenderEnqueueFailureReleasesJob(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")
	ctx := context.Background()
	s := f.withScenes(t)

	_, err := f.renders.StartRender(ctx, s.ID, "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	status, err := f.renders.Status(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Render)
	assert.Equal(t, model.RenderError, status.Render.Status)
	assert.True(t, status.Render.Terminal())

	f.queue.err = nil
	_, err = f.renders.StartRender(ctx, s.ID, "user-1")
	require.NoError(t, err)
}

func TestRenderOutcomeIgnoresStaleJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.withScenes(t)

	resp, err := f.renders.StartRender(ctx, s.ID, "user-1")
	require.NoError(t, err)

	ok, err := f.renders.RecordAttempt(ctx, s.ID, "other-job", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.renders.RecordAttempt(ctx, s.ID, resp.JobID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	job, err := f.renders.Complete(ctx, s.ID, resp.JobID, poller.Result{Outcome: poller.OutcomeDone, ResultURL: "https://cdn/v.mp4", Attempts: 2})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.RenderDone, job.Status)

	// a second outcome for the same job changes nothing
	job, err = f.renders.Complete(ctx, s.ID, resp.JobID, poller.Result{Outcome: poller.OutcomeTimeout, Attempts: 60})
	require.NoError(t, err)
	assert.Nil(t, job)

	loaded, err := f.sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", loaded.Delivery.VideoURL)
	assert.Equal(t, 2, loaded.Studio.Render.Attempts)
}

type readiness struct{ err error }

func (r readiness) Ready(context.Context) error { return r.err }

func TestModeSwitch(t *testing.T) {
	ctx := context.Background()
	notReady := &apperr.ConfigError{Key: "live", Reason: "not ready"}

	m := NewModeService(model.ModeSimulated, readiness{err: notReady})
	err := m.Switch(ctx, model.ModeLive)
	var cfgErr *apperr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, model.ModeSimulated, m.Mode())
	assert.False(t, m.Ready(ctx))

	assert.True(t, apperr.IsValidation(m.Switch(ctx, model.Mode("turbo"))))

	m = NewModeService(model.ModeSimulated, readiness{})
	require.NoError(t, m.Switch(ctx, model.ModeLive))
	assert.Equal(t, model.ModeLive, m.Mode())
	require.NoError(t, m.Switch(ctx, model.ModeSimulated))
	assert.Equal(t, model.ModeSimulated, m.Mode())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	s := pipeline.NewSession("s-1", "u", registry.Default(), t0)
	require.NoError(t, store.Save(ctx, s))

	s.Trigger.Topic = "mutated after save"
	loaded, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Trigger.Topic)
}
