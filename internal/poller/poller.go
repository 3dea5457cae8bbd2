// Package poller tracks one long-running external job to a terminal state
// under both an attempt bound and a wall-clock bound.
package poller

import (
	"context"
	"fmt"
	"time"
)

// Defaults
const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 5 * time.Second
)

// Outcome is the terminal state of a polling run
type Outcome string

const (
	OutcomeDone          Outcome = "done"
	OutcomeExplicitError Outcome = "explicit_error"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeInconsistent  Outcome = "inconsistent_state"
)

// Status is what one poll call observed
type Status struct {
	State     string
	ResultURL string
	Message   string
}

// PollFunc performs one status call. A returned error is a transport
// failure and counts as an attempt.
type PollFunc func(ctx context.Context) (Status, error)

// Observer is notified after every poll with the attempt count so far.
type Observer func(attempts int, st Status, err error)

// Config bounds a polling run
type Config struct {
	MaxAttempts int
	Interval    time.Duration
	// MaxWait defaults to MaxAttempts * Interval.
	MaxWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Duration(c.MaxAttempts) * c.Interval
	}
	return c
}

// Result is the outcome of a run
type Result struct {
	Outcome   Outcome
	ResultURL string
	Attempts  int
	Polls     int
	Last      Status
	LastErr   error
}

// Poller runs polling loops against an injected clock
type Poller struct {
	cfg   Config
	clock Clock
}

// New creates a poller; a nil clock uses the wall clock.
func New(cfg Config, clock Clock) *Poller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{cfg: cfg.withDefaults(), clock: clock}
}

// Config returns the effective bounds.
func (p *Poller) Config() Config {
	return p.cfg
}

// Run polls until a terminal outcome. Polls are strictly sequential. The
// only error returned is the context error when ctx ends first; terminal
// failures are reported through Result.Outcome.
func (p *Poller) Run(ctx context.Context, submittedAt time.Time, poll PollFunc, observe Observer) (Result, error) {
	var res Result

	for {
		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			return res, err
		}

		if p.clock.Now().Sub(submittedAt) > p.cfg.MaxWait {
			res.Outcome = OutcomeTimeout
			return res, nil
		}

		st, err := poll(ctx)
		res.Polls++
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Attempts++
			res.LastErr = err
			notify(observe, res.Attempts, st, err)
			if res.Attempts >= p.cfg.MaxAttempts {
				res.Outcome = OutcomeTimeout
				return res, nil
			}
			continue
		}

		res.Last = st
		res.LastErr = nil

		switch st.State {
		case "done":
			notify(observe, res.Attempts, st, nil)
			if st.ResultURL == "" {
				res.Outcome = OutcomeInconsistent
				return res, nil
			}
			res.Outcome = OutcomeDone
			res.ResultURL = st.ResultURL
			return res, nil
		case "error", "failed":
			notify(observe, res.Attempts, st, nil)
			res.Outcome = OutcomeExplicitError
			return res, nil
		}

		res.Attempts++
		notify(observe, res.Attempts, st, nil)
		if res.Attempts >= p.cfg.MaxAttempts {
			res.Outcome = OutcomeTimeout
			return res, nil
		}
	}
}

func notify(observe Observer, attempts int, st Status, err error) {
	if observe != nil {
		observe(attempts, st, err)
	}
}

// String renders the result for logs.
func (r Result) String() string {
	switch r.Outcome {
	case OutcomeDone:
		return fmt.Sprintf("done after %d polls: %s", r.Polls, r.ResultURL)
	case OutcomeExplicitError:
		return fmt.Sprintf("%s after %d polls (status %q)", r.Outcome, r.Polls, r.Last.State)
	}
	return fmt.Sprintf("%s after %d polls", r.Outcome, r.Polls)
}
