package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a session lock could not be taken in time
var ErrLockTimeout = errors.New("session lock timeout")

// SessionStore keeps session records in Redis as JSON with a sliding TTL.
// Updates for one session id are serialized by a local mutex and a Redis lock,
// so several service replicas can share the same sessions. The Redis lock is
// refreshed every lockTTL/3 while an update runs, so a slow order insert inside
// Confirm keeps it.
type SessionStore struct {
	client   *Client
	logger   *zap.Logger
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration

	mu    sync.Mutex
	local map[string]*localLock
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionStore creates a Redis-backed session store
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		logger:   util.GetLogger(),
		ttl:      ttl,
		lockTTL:  10 * time.Second,
		lockWait: 5 * time.Second,
		local:    make(map[string]*localLock),
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Get returns the session record, or an empty record when absent
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Data, error) {
	data, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrPersistence, err)
	}
	return data, nil
}

// Update applies fn while holding the session lock
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*session.Data) error) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrPersistence, err)
	}

	if err := fn(data); err != nil {
		return err
	}

	data.UpdatedAt = time.Now()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: marshal session: %v", session.ErrPersistence, err)
	}

	if err := s.client.rdb.Set(ctx, sessionKey(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %v", session.ErrPersistence, err)
	}
	return nil
}

// Delete drops the session record
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", session.ErrPersistence, err)
	}
	return nil
}

func (s *SessionStore) load(ctx context.Context, id string) (*session.Data, error) {
	raw, err := s.client.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return session.New(), nil
	}
	if err != nil {
		return nil, err
	}

	data := session.New()
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if data.Items == nil {
		data = data.Clone()
	}
	return data, nil
}

// lock takes the local mutex first so only one goroutine per process polls Redis
func (s *SessionStore) lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.local[id]
	if !ok {
		l = &localLock{}
		s.local[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	releaseLocal := func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.local, id)
		}
		s.mu.Unlock()
	}

	token, err := s.acquire(ctx, id)
	if err != nil {
		releaseLocal()
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepAlive(id, token, stop, done)

	return func() {
		close(stop)
		<-done

		// release with a fresh context so a cancelled request still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.ReleaseLock(releaseCtx, sessionKey(id), token); err != nil {
			s.logger.Warn("Failed to release session lock",
				zap.String("session_id", id),
				zap.Error(err))
		}
		releaseLocal()
	}, nil
}

// keepAlive extends the Redis lock until stop is closed
func (s *SessionStore) keepAlive(id, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL/3)
			ok, err := s.client.ExtendLock(ctx, sessionKey(id), token, s.lockTTL)
			cancel()
			if err != nil {
				s.logger.Warn("Failed to extend session lock",
					zap.String("session_id", id),
					zap.Error(err))
				continue
			}
			if !ok {
				s.logger.Error("Session lock lost during update", zap.String("session_id", id))
				return
			}
		}
	}
}

func (s *SessionStore) acquire(ctx context.Context, id string) (string, error) {
	deadline := time.Now().Add(s.lockWait)
	backoff := 10 * time.Millisecond

	for {
		token, err := s.client.AcquireLock(ctx, sessionKey(id), s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", session.ErrPersistence, err)
		}
		if token != "" {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}
