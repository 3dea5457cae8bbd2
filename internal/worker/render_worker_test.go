package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/metrics"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
	"github.com/luzdodia/api/internal/service"
)

type recordingNotifier struct {
	mu       sync.Mutex
	progress []model.WSProgressMessage
	complete []model.WSCompleteMessage
	errors   []model.WSErrorMessage
}

func (n *recordingNotifier) BroadcastProgress(msg model.WSProgressMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, msg)
}

func (n *recordingNotifier) BroadcastComplete(msg model.WSCompleteMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.complete = append(n.complete, msg)
}

func (n *recordingNotifier) BroadcastError(msg model.WSErrorMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

type stuckExecutor struct {
	pipeline.Executor
}

func (stuckExecutor) Poll(ctx context.Context, sel model.Selection, jobID string, mode model.Mode) (poller.Status, error) {
	return poller.Status{State: "rendering"}, nil
}

type harness struct {
	sessions *service.SessionService
	renders  *service.RenderService
	worker   *RenderWorker
	hub      *recordingNotifier
	queue    *captureQueue
	reg      *prometheus.Registry
}

type captureQueue struct {
	payloads []model.TrackRenderPayload
}

func (q *captureQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	var p model.TrackRenderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return nil, err
	}
	q.payloads = append(q.payloads, p)
	return &asynq.TaskInfo{ID: p.JobID, Type: task.Type()}, nil
}

func newHarness(t *testing.T, wrap func(pipeline.Executor) pipeline.Executor) *harness {
	t.Helper()
	reg := registry.Default()
	clock := poller.NewFakeClock(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC))
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)
	var exec pipeline.Executor = executor.New(reg, nil, executor.Settings{Clock: clock, SimulatedRenderPolls: 2, Metrics: m})
	if wrap != nil {
		exec = wrap(exec)
	}
	orch := pipeline.New(reg, exec, pipeline.StaticMode(model.ModeSimulated), pipeline.Options{
		Poller: poller.Config{MaxAttempts: 5, Interval: 5 * time.Second},
		Clock:  clock,
	})

	h := &harness{hub: &recordingNotifier{}, queue: &captureQueue{}, reg: promRegistry}
	h.sessions = service.NewSessionService(service.NewMemorySessionStore(), orch, reg, nil, time.Second)
	h.renders = service.NewRenderService(h.sessions, orch, h.queue)
	h.worker = NewRenderWorker(h.renders, orch, h.hub, m)
	return h
}

func (h *harness) submit(t *testing.T) model.TrackRenderPayload {
	t.Helper()
	ctx := context.Background()
	s, err := h.sessions.Create(ctx, "user-1", model.TriggerRequest{Topic: "Oração da manhã"})
	require.NoError(t, err)
	_, err = h.sessions.Mutate(ctx, s.ID, "user-1", func(s *model.PipelineSession) error {
		s.CurrentPhase = model.PhaseStudio
		s.Studio.Scenes = []model.Scene{{Index: 0, Start: 0, End: 30, Narration: "Senhor, obrigado."}}
		return nil
	})
	require.NoError(t, err)

	_, err = h.renders.StartRender(ctx, s.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, h.queue.payloads, 1)
	return h.queue.payloads[0]
}

func TestTrackRenderCompletes(t *testing.T) {
	h := newHarness(t, nil)
	payload := h.submit(t)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, h.worker.ProcessTask(context.Background(), asynq.NewTask(model.TaskTypeTrackRender, data)))

	s, err := h.sessions.Get(context.Background(), payload.SessionID)
	require.NoError(t, err)
	require.NotNil(t, s.Studio.Render)
	assert.Equal(t, model.RenderDone, s.Studio.Render.Status)
	assert.Equal(t, 1, s.Studio.Render.Attempts)
	assert.NotEmpty(t, s.Studio.Render.ResultURL)
	assert.Equal(t, s.Studio.Render.ResultURL, s.Delivery.VideoURL)
	assert.True(t, pipeline.CanAdvance(s, model.PhaseStudio))

	// the finishing poll is not counted as an attempt
	require.Len(t, h.hub.progress, 2)
	assert.Equal(t, 1, h.hub.progress[0].Attempt)
	assert.Equal(t, 1, h.hub.progress[1].Attempt)
	require.Len(t, h.hub.complete, 1)
	assert.Equal(t, payload.JobID, h.hub.complete[0].Render.ID)
	assert.Empty(t, h.hub.errors)
}

func TestTrackRenderCountsEachPollOnce(t *testing.T) {
	h := newHarness(t, nil)
	payload := h.submit(t)

	require.NoError(t, h.worker.Track(context.Background(), payload))

	// two simulated polls: one processing, one done
	expected := `
# HELP luzdodia_render_poll_attempts_total Render status polls issued.
# TYPE luzdodia_render_poll_attempts_total counter
luzdodia_render_poll_attempts_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "luzdodia_render_poll_attempts_total"))
}

func TestTrackRenderTimeout(t *testing.T) {
	h := newHarness(t, func(e pipeline.Executor) pipeline.Executor { return stuckExecutor{e} })
	payload := h.submit(t)

	require.NoError(t, h.worker.Track(context.Background(), payload))

	s, err := h.sessions.Get(context.Background(), payload.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.RenderTimeout, s.Studio.Render.Status)
	assert.Equal(t, 5, s.Studio.Render.Attempts)
	assert.Empty(t, s.Delivery.VideoURL)

	assert.Len(t, h.hub.progress, 5)
	assert.Empty(t, h.hub.complete)
	require.Len(t, h.hub.errors, 1)
	assert.Equal(t, "RENDER_TIMEOUT", h.hub.errors[0].Error.Code)
}

func TestTrackRenderSkipsStaleJob(t *testing.T) {
	h := newHarness(t, nil)
	payload := h.submit(t)
	payload.JobID = "replaced"

	require.NoError(t, h.worker.Track(context.Background(), payload))
	assert.Empty(t, h.hub.progress)

	s, err := h.sessions.Get(context.Background(), payload.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.RenderSubmitted, s.Studio.Render.Status)
}

func TestTrackRenderSkipsDeletedSession(t *testing.T) {
	h := newHarness(t, nil)
	payload := h.submit(t)
	require.NoError(t, h.sessions.Delete(context.Background(), payload.SessionID))

	assert.NoError(t, h.worker.Track(context.Background(), payload))
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	h := newHarness(t, nil)
	err := h.worker.ProcessTask(context.Background(), asynq.NewTask(model.TaskTypeTrackRender, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestInlineQueueRunsHandler(t *testing.T) {
	h := newHarness(t, nil)
	mux := asynq.NewServeMux()
	mux.Handle(model.TaskTypeTrackRender, h.worker)
	q := NewInlineQueue(mux)
	defer q.Shutdown()

	payload := h.submit(t)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	info, err := q.EnqueueContext(context.Background(), asynq.NewTask(model.TaskTypeTrackRender, data))
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeTrackRender, info.Type)

	require.Eventually(t, func() bool {
		s, err := h.sessions.Get(context.Background(), payload.SessionID)
		return err == nil && s.Studio.Render.Succeeded()
	}, 2*time.Second, 10*time.Millisecond)
}
