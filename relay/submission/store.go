package submission

import (
	"context"
	"time"

	"github.com/m3rciful/proxyrelay/core/telegram/state"
)

// Store keeps at most one open submission per user. Entries are copied in
// and out; concurrent writes for the same user are last-write-wins.
type Store struct {
	mem *state.Memory[Submission]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{mem: state.NewMemory[Submission]()}
}

// SetClock overrides the time source used for idle tracking.
func (s *Store) SetClock(now func() time.Time) {
	s.mem.SetClock(now)
}

// Get returns the user's open submission.
func (s *Store) Get(userID int64) (Submission, bool) {
	return s.mem.Get(userID)
}

// Put replaces the submission owned by sub.UserID.
func (s *Store) Put(sub Submission) {
	s.mem.Put(sub.UserID, sub)
}

// Delete discards the user's submission and reports whether one was open.
func (s *Store) Delete(userID int64) bool {
	return s.mem.Delete(userID)
}

// Take discards the user's submission only if it is still the one with id,
// and reports whether this call removed it. Of several concurrent callers
// holding the same submission, exactly one wins.
func (s *Store) Take(userID int64, id string) bool {
	_, ok := s.mem.TakeIf(userID, func(sub Submission) bool { return sub.ID == id })
	return ok
}

// Len returns the number of open submissions.
func (s *Store) Len() int {
	return s.mem.Len()
}

// Sweep discards submissions idle for longer than maxIdle.
func (s *Store) Sweep(maxIdle time.Duration) int {
	return s.mem.Sweep(maxIdle)
}

// RunJanitor sweeps abandoned submissions until ctx is done. maxIdle <= 0 disables it.
func (s *Store) RunJanitor(ctx context.Context, every, maxIdle time.Duration) {
	state.RunJanitor(ctx, s, every, maxIdle)
}
