package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/store"
)

// DefaultIdleTimeout evicts sessions with no activity for this long.
const DefaultIdleTimeout = 30 * time.Minute

// Session is one conversation, exclusively locked for the duration of a
// turn. The lock is held across classifier and store calls so turns within
// a session are strictly serialized; other sessions are unaffected.
type Session struct {
	ID        string
	CreatedAt time.Time
	Memory    *ConversationMemory

	mu           sync.Mutex
	lastActivity time.Time
	evicted      bool
}

// Lock acquires the session's exclusive turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch updates the last-activity time. Call under the session lock.
func (s *Session) Touch() { s.lastActivity = time.Now() }

// LastActivity returns the last-activity time. Call under the session lock.
func (s *Session) LastActivity() time.Time { return s.lastActivity }

// Evicted reports whether the sweeper removed this session from the table
// after the caller acquired it. Call under the session lock; when true the
// caller must unlock, re-acquire, and retry.
func (s *Session) Evicted() bool { return s.evicted }

// Manager owns the session table: creation on first message, lookup,
// explicit reset, idle eviction, and optional durable snapshots.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTimeout time.Duration
	window      int
	snapshots   store.SnapshotStore // nil disables persistence
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout overrides the idle eviction timeout.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithHistoryWindow overrides the per-session turn history window.
func WithHistoryWindow(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithSnapshots enables durable session state across restarts.
func WithSnapshots(s store.SnapshotStore) ManagerOption {
	return func(m *Manager) { m.snapshots = s }
}

// NewManager creates a session manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: DefaultIdleTimeout,
		window:      DefaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the session for id, creating it on first use. A newly
// created session is restored from its snapshot when persistence is
// enabled. The caller must Lock the session before processing a turn.
func (m *Manager) Acquire(ctx context.Context, id string) *Session {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess
	}

	sess = &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		lastActivity: time.Now(),
		Memory:       NewMemory(m.window),
	}
	if m.snapshots != nil {
		if err := m.restore(ctx, sess); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("session_id", id).Msg("session snapshot restore failed")
		}
	}
	m.sessions[id] = sess
	log.Debug().Str("session_id", id).Msg("session created")
	return sess
}

// Reset clears a session's memory and pending operation, and removes its
// snapshot. Unknown ids are a no-op.
func (m *Manager) Reset(ctx context.Context, id string) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		sess.Lock()
		sess.Memory.Reset()
		sess.Touch()
		sess.Unlock()
	}
	if m.snapshots != nil {
		if err := m.snapshots.DeleteSnapshot(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("snapshot delete failed")
		}
	}
}

// Persist writes the session's current state to the snapshot store.
// Call under the session lock. No-op when persistence is disabled.
func (m *Manager) Persist(ctx context.Context, sess *Session) error {
	if m.snapshots == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot{
		CreatedAt: sess.CreatedAt,
		Memory:    sess.Memory,
		NextSeq:   sess.Memory.nextSeq,
	})
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	return m.snapshots.SaveSnapshot(ctx, sess.ID, payload)
}

// EvictIdle removes sessions idle past the timeout, discarding their
// pending operations without side effects. Returns evicted ids.
//
// The manager lock is held for the whole sweep so Acquire cannot hand out
// a session that is being removed. The idle check itself happens under the
// session lock; a session whose lock is held has a turn in flight and is
// skipped until the next sweep.
func (m *Manager) EvictIdle(ctx context.Context) []string {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for id, sess := range m.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastActivity.Before(cutoff) {
			sess.Memory.ClearPending()
			if err := m.Persist(ctx, sess); err != nil {
				log.Warn().Err(err).Str("session_id", sess.ID).Msg("snapshot on eviction failed")
			}
			sess.evicted = true
			delete(m.sessions, id)
			evicted = append(evicted, id)
			log.Info().Str("session_id", sess.ID).Msg("session evicted after idle timeout")
		}
		sess.mu.Unlock()
	}
	return evicted
}

// StartSweeper runs idle eviction on the given interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.EvictIdle(ctx)
			}
		}
	}()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// snapshot is the durable session document written to the snapshot store.
type snapshot struct {
	CreatedAt time.Time           `json:"created_at"`
	Memory    *ConversationMemory `json:"memory"`
	NextSeq   uint64              `json:"next_seq"`
}

func (m *Manager) restore(ctx context.Context, sess *Session) error {
	payload, err := m.snapshots.LoadSnapshot(ctx, sess.ID)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("decode session snapshot: %w", err)
	}
	if snap.Memory == nil {
		return nil
	}
	mem := NewMemory(m.window)
	mem.Turns = snap.Memory.Turns
	mem.Pending = snap.Memory.Pending
	if snap.Memory.Entities != nil {
		mem.Entities = snap.Memory.Entities
	}
	if snap.NextSeq > mem.nextSeq {
		mem.nextSeq = snap.NextSeq
	}
	sess.Memory = mem
	if !snap.CreatedAt.IsZero() {
		sess.CreatedAt = snap.CreatedAt
	}
	log.Debug().Str("session_id", sess.ID).Int("turns", len(mem.Turns)).Msg("session restored from snapshot")
	return nil
}
