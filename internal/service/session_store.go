package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/model"
)

// ErrSessionBusy is returned when the session lock cannot be taken in time.
var ErrSessionBusy = errors.New("session is busy")

// SessionStore persists sessions and serializes their mutations
type SessionStore interface {
	Load(ctx context.Context, id string) (*model.PipelineSession, error)
	Save(ctx context.Context, s *model.PipelineSession) error
	Delete(ctx context.Context, id string) error
	// Lock blocks until the caller owns the session or ctx ends. The
	// returned func releases it.
	Lock(ctx context.Context, id string) (func(), error)
	Ping(ctx context.Context) error
}

const lockRetry = 50 * time.Millisecond

// Release the lock only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// RedisSessionStore keeps sessions as JSON under session:<id>
type RedisSessionStore struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl, lockTTL time.Duration) *RedisSessionStore {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &RedisSessionStore{redis: redisClient, ttl: ttl, lockTTL: lockTTL}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisSessionStore) Load(ctx context.Context, id string) (*model.PipelineSession, error) {
	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &apperr.NotFoundError{Resource: "session", ID: id}
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s model.PipelineSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *model.PipelineSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, sessionKey(s.ID), data, r.ttl).Err()
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	n, err := r.redis.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFoundError{Resource: "session", ID: id}
	}
	return nil
}

// Lock takes session:<id>:lock with SET NX and keeps extending the lease
// until released, so long provider calls cannot outlive it.
func (r *RedisSessionStore) Lock(ctx context.Context, id string) (func(), error) {
	key := sessionKey(id) + ":lock"
	token := uuid.New().String()

	for {
		ok, err := r.redis.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to lock session: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrSessionBusy, id)
		case <-time.After(lockRetry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := extendScript.Run(context.Background(), r.redis, []string{key}, token, r.lockTTL.Milliseconds()).Err()
				if err != nil {
					slog.Warn("failed to extend session lock", "session", id, "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := unlockScript.Run(context.Background(), r.redis, []string{key}, token).Err(); err != nil {
				slog.Warn("failed to release session lock", "session", id, "error", err)
			}
		})
	}, nil
}

func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// MemorySessionStore keeps sessions in process. Sessions are stored
// serialized so callers never share pointers.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	locks    map[string]chan struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string][]byte),
		locks:    make(map[string]chan struct{}),
	}
}

func (m *MemorySessionStore) Load(ctx context.Context, id string) (*model.PipelineSession, error) {
	m.mu.Lock()
	data, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "session", ID: id}
	}

	var s model.PipelineSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, s *model.PipelineSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return &apperr.NotFoundError{Resource: "session", ID: id}
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Lock(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	sem, ok := m.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[id] = sem
	}
	m.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

func (m *MemorySessionStore) Ping(ctx context.Context) error {
	return nil
}
