// Package access holds the process-wide access policy: the enabled flag,
// the ban list and the administrator set.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/relay/store"
)

// Persisted document keys.
const (
	KeyBannedUsers = "banned_users"
	KeyBotEnabled  = "bot_enabled"
)

var (
	// ErrBanned denies banned users.
	ErrBanned = errors.New("access: user is banned")
	// ErrDisabled denies non-admins while the service is disabled.
	ErrDisabled = errors.New("access: service disabled")
	// ErrNotMember denies users outside the sponsor channel.
	ErrNotMember = errors.New("access: not a sponsor channel member")
)

// IsDenied reports whether err is one of the access denials.
func IsDenied(err error) bool {
	return errors.Is(err, ErrBanned) || errors.Is(err, ErrDisabled) || errors.Is(err, ErrNotMember)
}

// Snapshot is a point-in-time view of the policy.
type Snapshot struct {
	Enabled bool
	Banned  []int64
	Admins  []int64
}

// Policy answers access questions from memory and writes every mutation
// through to the store before it becomes visible.
type Policy struct {
	st     store.Store
	admins map[int64]struct{}

	mu      sync.RWMutex
	enabled bool
	banned  map[int64]struct{}
}

// Load reads the persisted policy. Missing documents mean enabled with an
// empty ban list.
func Load(ctx context.Context, st store.Store, adminIDs []int64) (*Policy, error) {
	if st == nil {
		return nil, fmt.Errorf("access: nil store")
	}
	p := &Policy{
		st:      st,
		admins:  make(map[int64]struct{}, len(adminIDs)),
		enabled: true,
		banned:  make(map[int64]struct{}),
	}
	for _, id := range adminIDs {
		p.admins[id] = struct{}{}
	}

	var banned []int64
	if _, err := st.Load(ctx, KeyBannedUsers, &banned); err != nil {
		return nil, fmt.Errorf("access: load %s: %w", KeyBannedUsers, err)
	}
	for _, id := range banned {
		p.banned[id] = struct{}{}
	}
	if _, err := st.Load(ctx, KeyBotEnabled, &p.enabled); err != nil {
		return nil, fmt.Errorf("access: load %s: %w", KeyBotEnabled, err)
	}

	logger.Info(ctx, "relay.access", "access.load",
		slog.String("status", "ok"),
		slog.Bool("enabled", p.enabled),
		slog.Int("banned", len(p.banned)),
		slog.Int("admins", len(p.admins)),
	)
	return p, nil
}

// IsAdmin reports whether userID is in the configured administrator set.
func (p *Policy) IsAdmin(userID int64) bool {
	_, ok := p.admins[userID]
	return ok
}

// IsBanned reports whether userID is on the ban list.
func (p *Policy) IsBanned(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.banned[userID]
	return ok
}

// IsEnabled reports the global enabled flag.
func (p *Policy) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Check returns ErrBanned or ErrDisabled when userID may not proceed.
// Bans apply to admins too; the enabled flag does not.
func (p *Policy) Check(userID int64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, banned := p.banned[userID]; banned {
		return ErrBanned
	}
	if !p.enabled && !p.IsAdmin(userID) {
		return ErrDisabled
	}
	return nil
}

// Ban adds userID to the ban list. Banning a banned user is a no-op.
func (p *Policy) Ban(ctx context.Context, userID int64) error {
	return p.updateBanned(ctx, userID, true)
}

// Unban removes userID from the ban list.
func (p *Policy) Unban(ctx context.Context, userID int64) error {
	return p.updateBanned(ctx, userID, false)
}

func (p *Policy) updateBanned(ctx context.Context, userID int64, ban bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, present := p.banned[userID]
	if present == ban {
		return nil
	}
	next := make(map[int64]struct{}, len(p.banned)+1)
	for id := range p.banned {
		next[id] = struct{}{}
	}
	event := "access.unban"
	if ban {
		next[userID] = struct{}{}
		event = "access.ban"
	} else {
		delete(next, userID)
	}

	if err := p.st.Save(ctx, KeyBannedUsers, sortedIDs(next)); err != nil {
		logger.Error(ctx, "relay.access", event,
			slog.String("status", "fail"),
			slog.Int64("target_id", userID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("access: persist %s: %w", KeyBannedUsers, err)
	}
	p.banned = next

	logger.Info(ctx, "relay.access", event,
		slog.String("status", "ok"),
		slog.Int64("target_id", userID),
		slog.Int("banned", len(next)),
	)
	return nil
}

// SetEnabled persists and applies the global enabled flag.
func (p *Policy) SetEnabled(ctx context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.st.Save(ctx, KeyBotEnabled, enabled); err != nil {
		logger.Error(ctx, "relay.access", "access.set_enabled",
			slog.String("status", "fail"),
			slog.Bool("enabled", enabled),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("access: persist %s: %w", KeyBotEnabled, err)
	}
	p.enabled = enabled

	logger.Info(ctx, "relay.access", "access.set_enabled",
		slog.String("status", "ok"),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// Snapshot returns a copy of the current policy.
func (p *Policy) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	admins := make(map[int64]struct{}, len(p.admins))
	for id := range p.admins {
		admins[id] = struct{}{}
	}
	return Snapshot{
		Enabled: p.enabled,
		Banned:  sortedIDs(p.banned),
		Admins:  sortedIDs(admins),
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
