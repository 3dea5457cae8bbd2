package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/registry"
)

// SessionBroadcaster announces saved session changes to watchers
type SessionBroadcaster interface {
	BroadcastSession(msg model.WSSessionMessage)
}

// AssetCleaner removes stored media under a key prefix
type AssetCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type SessionService struct {
	store    SessionStore
	orch     *pipeline.Orchestrator
	reg      *registry.Registry
	hub      SessionBroadcaster
	assets   AssetCleaner
	lockWait time.Duration
}

func NewSessionService(store SessionStore, orch *pipeline.Orchestrator, reg *registry.Registry, hub SessionBroadcaster, lockWait time.Duration) *SessionService {
	if lockWait <= 0 {
		lockWait = 10 * time.Second
	}
	return &SessionService{
		store:    store,
		orch:     orch,
		reg:      reg,
		hub:      hub,
		lockWait: lockWait,
	}
}

// Create starts a new session in the Trigger phase.
func (s *SessionService) Create(ctx context.Context, owner string, req model.TriggerRequest) (*model.PipelineSession, error) {
	session := pipeline.NewSession(uuid.New().String(), owner, s.reg, s.orch.Now())
	pipeline.UpdateTrigger(session, req)
	session.UpdatedBy = owner

	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("session created", "session", session.ID, "owner", owner)
	return session, nil
}

// WithAssetCleaner makes Delete remove the session's stored media too.
func (s *SessionService) WithAssetCleaner(assets AssetCleaner) *SessionService {
	s.assets = assets
	return s
}

func (s *SessionService) Get(ctx context.Context, id string) (*model.PipelineSession, error) {
	return s.store.Load(ctx, id)
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if s.assets != nil {
		// A failed cleanup does not fail the delete.
		n, err := s.assets.DeletePrefix(ctx, client.SessionAssetPrefix(id))
		if err != nil {
			slog.Warn("session assets not removed", "session", id, "deleted", n, "error", err)
		} else if n > 0 {
			slog.Info("session assets removed", "session", id, "deleted", n)
		}
	}
	return nil
}

func (s *SessionService) lock(ctx context.Context, id string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	return s.store.Lock(lockCtx, id)
}

// Mutate loads session id under its lock and applies fn. The session is
// saved only when fn succeeds, so a failed operation leaves it as it was.
func (s *SessionService) Mutate(ctx context.Context, id, actor string, fn func(*model.PipelineSession) error) (*model.PipelineSession, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}

	session.UpdatedAt = s.orch.Now()
	if actor != "" {
		session.UpdatedBy = actor
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastSession(model.WSSessionMessage{
			Type:      model.WSMessageTypeSession,
			SessionID: session.ID,
			Phase:     session.CurrentPhase,
			UpdatedBy: session.UpdatedBy,
		})
	}
	return session, nil
}

// Advance moves the session to the next phase. Entering Planning without a
// plan drafts one; a failed draft does not undo the advance.
func (s *SessionService) Advance(ctx context.Context, id, actor string) (*model.PipelineSession, error) {
	return s.Mutate(ctx, id, actor, func(session *model.PipelineSession) error {
		if err := pipeline.Advance(session); err != nil {
			return err
		}
		if session.CurrentPhase == model.PhasePlanning && session.Planning.Plan == "" {
			if _, err := s.orch.DraftPlan(ctx, session); err != nil {
				slog.Warn("plan draft failed", "session", session.ID, "error", err)
			}
		}
		return nil
	})
}
