package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	mu   sync.Mutex
	data *Data
	refs int
}

// MemoryStore keeps sessions in process memory with one mutex per session id.
// Sessions idle longer than the TTL are dropped by a janitor goroutine.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMemoryStore creates an in-memory store. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		s.wg.Add(1)
		go s.janitor(ttl / 2)
	}
	return s
}

// acquire returns the locked entry for id, creating it when absent
func (s *MemoryStore) acquire(id string) *memoryEntry {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &memoryEntry{}
		s.entries[id] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

func (s *MemoryStore) release(id string, e *memoryEntry) {
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	if e.refs == 0 && e.data == nil {
		delete(s.entries, id)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) expired(d *Data) bool {
	return s.ttl > 0 && d != nil && s.now().Sub(d.UpdatedAt) > s.ttl
}

// Get returns a copy of the session record, or an empty record when absent
func (s *MemoryStore) Get(ctx context.Context, id string) (*Data, error) {
	e := s.acquire(id)
	defer s.release(id, e)

	if e.data == nil || s.expired(e.data) {
		e.data = nil
		return New(), nil
	}
	return e.data.Clone(), nil
}

// Update applies fn atomically for one session id
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Data) error) error {
	e := s.acquire(id)
	defer s.release(id, e)

	if err := ctx.Err(); err != nil {
		return err
	}

	current := New()
	if e.data != nil && !s.expired(e.data) {
		current = e.data.Clone()
	}

	if err := fn(current); err != nil {
		return err
	}

	current.UpdatedAt = s.now()
	e.data = current
	return nil
}

// Delete drops the session record
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	e := s.acquire(id)
	e.data = nil
	s.release(id, e)
	return nil
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the janitor
func (s *MemoryStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired sessions that nobody is holding
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.refs == 0 && (e.data == nil || s.expired(e.data)) {
			delete(s.entries, id)
		}
	}
}
