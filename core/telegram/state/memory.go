package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// Memory is a concurrency-safe session map keyed by user id. Values are
// copied in and out, so callers never share a session across goroutines.
type Memory[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]entry[T]
	now      func() time.Time
}

// NewMemory constructs an empty in-memory session map.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		sessions: make(map[int64]entry[T]),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for idle tracking.
func (m *Memory[T]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	m.now = now
}

// Get returns the session for a user if it exists.
func (m *Memory[T]) Get(userID int64) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	return e.value, ok
}

// Put replaces the user's session and marks it as recently used.
func (m *Memory[T]) Put(userID int64, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = entry[T]{value: v, touched: m.now()}
}

// Delete removes the user's session and reports whether one existed.
func (m *Memory[T]) Delete(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// TakeIf removes and returns the user's session when match approves it. The
// check and the removal happen under one lock, so only one caller can take
// a given session.
func (m *Memory[T]) TakeIf(userID int64, match func(T) bool) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok || (match != nil && !match(e.value)) {
		var zero T
		return zero, false
	}
	delete(m.sessions, userID)
	return e.value, true
}

// Len returns the number of open sessions.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions untouched for longer than maxIdle. maxIdle <= 0 keeps everything.
func (m *Memory[T]) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	removed := 0
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps s every interval until ctx is done.
func RunJanitor(ctx context.Context, s Sweeper, every, maxIdle time.Duration) {
	if s == nil || every <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				logger.Info(ctx, "tg", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("removed", n),
					slog.Duration("max_idle", maxIdle),
				)
			}
		}
	}
}
