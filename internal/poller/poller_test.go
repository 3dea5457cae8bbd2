package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

// script replays a fixed sequence of poll responses; the last one repeats.
type script struct {
	steps []step
	calls int
}

type step struct {
	st  Status
	err error
}

func (s *script) poll(ctx context.Context) (Status, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].st, s.steps[i].err
}

func processing() step { return step{st: Status{State: "processing"}} }
func done(url string) step { return step{st: Status{State: "done", ResultURL: url}} }
func transport() step { return step{err: errors.New("connection reset")} }
func state(name string) step { return step{st: Status{State: name}} }

func TestRunSuccess(t *testing.T) {
	s := &script{steps: []step{processing(), processing(), processing(), done("X")}}
	p := New(Config{}, NewFakeClock(t0))

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, "X", res.ResultURL)
	assert.Equal(t, 4, res.Polls)
	assert.Equal(t, 4, s.calls)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunTimeoutAfterExactlyMaxAttempts(t *testing.T) {
	s := &script{steps: []step{processing()}}
	p := New(Config{MaxAttempts: 60, Interval: 5 * time.Second}, NewFakeClock(t0))

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, 60, s.calls)
	assert.Equal(t, 60, res.Attempts)
}

func TestRunTransportFailuresCountAsAttempts(t *testing.T) {
	s := &script{steps: []step{transport()}}
	p := New(Config{MaxAttempts: 10, Interval: time.Second}, NewFakeClock(t0))

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, 10, s.calls)
	assert.Error(t, res.LastErr)
}

func TestRunRecoversFromTransportFailure(t *testing.T) {
	s := &script{steps: []step{transport(), processing(), done("https://cdn/x.mp4")}}
	p := New(Config{MaxAttempts: 5, Interval: time.Second}, NewFakeClock(t0))

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 2, res.Attempts)
	assert.NoError(t, res.LastErr)
}

func TestRunInconsistentState(t *testing.T) {
	s := &script{steps: []step{processing(), done("")}}
	p := New(Config{}, NewFakeClock(t0))

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInconsistent, res.Outcome)
	assert.Empty(t, res.ResultURL)
	assert.Equal(t, 2, s.calls)
}

func TestRunExplicitError(t *testing.T) {
	for _, name := range []string{"error", "failed"} {
		t.Run(name, func(t *testing.T) {
			s := &script{steps: []step{state("queued"), state(name)}}
			p := New(Config{}, NewFakeClock(t0))

			res, err := p.Run(context.Background(), t0, s.poll, nil)
			require.NoError(t, err)
			assert.Equal(t, OutcomeExplicitError, res.Outcome)
			assert.Equal(t, name, res.Last.State)
			assert.Equal(t, 2, s.calls)
		})
	}
}

func TestRunWallClockBoundBeforeAttemptBound(t *testing.T) {
	clock := NewFakeClock(t0)
	calls := 0
	slow := func(ctx context.Context) (Status, error) {
		calls++
		clock.Advance(time.Minute)
		return Status{State: "processing"}, nil
	}
	p := New(Config{MaxAttempts: 60, Interval: 5 * time.Second}, clock)

	res, err := p.Run(context.Background(), t0, slow, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, 5, calls)
	assert.Less(t, res.Attempts, 60)
}

func TestRunChecksWallClockBeforePolling(t *testing.T) {
	clock := NewFakeClock(t0.Add(10 * time.Minute))
	s := &script{steps: []step{done("X")}}
	p := New(Config{MaxAttempts: 3, Interval: time.Second}, clock)

	res, err := p.Run(context.Background(), t0, s.poll, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Zero(t, s.calls)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	poll := func(ctx context.Context) (Status, error) {
		calls++
		cancel()
		return Status{State: "processing"}, nil
	}
	p := New(Config{}, NewFakeClock(t0))

	_, err := p.Run(ctx, t0, poll, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRunObserverSeesEveryPoll(t *testing.T) {
	s := &script{steps: []step{processing(), transport(), done("X")}}
	p := New(Config{}, NewFakeClock(t0))

	var seen []int
	_, err := p.Run(context.Background(), t0, s.poll, func(attempts int, st Status, err error) {
		seen = append(seen, attempts)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, seen)
}

func TestConfigDefaults(t *testing.T) {
	cfg := New(Config{}, nil).Config()
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, 5*time.Minute, cfg.MaxWait)
}
