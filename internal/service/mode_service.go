package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/model"
)

// ReadinessChecker reports whether live execution can be served
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ModeService holds the process-wide execution mode
type ModeService struct {
	mu     sync.RWMutex
	mode   model.Mode
	health ReadinessChecker
}

func NewModeService(initial model.Mode, health ReadinessChecker) *ModeService {
	if !initial.Valid() {
		initial = model.ModeSimulated
	}
	return &ModeService{mode: initial, health: health}
}

// Mode returns the current mode.
func (s *ModeService) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Switch changes the mode. Going live requires every critical dependency
// to be ready; simulated is always allowed.
func (s *ModeService) Switch(ctx context.Context, mode model.Mode) error {
	if !mode.Valid() {
		return apperr.Validation("mode", "unknown mode %q", mode)
	}
	if mode == model.ModeLive && s.health != nil {
		if err := s.health.Ready(ctx); err != nil {
			return fmt.Errorf("cannot switch to live: %w", err)
		}
	}

	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	s.mu.Unlock()

	if prev != mode {
		slog.Info("execution mode switched", "from", prev, "to", mode)
	}
	return nil
}

// Ready reports whether live execution is currently possible.
func (s *ModeService) Ready(ctx context.Context) bool {
	return s.health == nil || s.health.Ready(ctx) == nil
}
