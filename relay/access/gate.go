package access

import (
	"context"
	"log/slog"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// MembershipChecker asks whether a user belongs to the sponsor channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// MembershipFunc adapts a function to MembershipChecker.
type MembershipFunc func(ctx context.Context, userID int64) (bool, error)

// IsMember implements MembershipChecker.
func (f MembershipFunc) IsMember(ctx context.Context, userID int64) (bool, error) {
	return f(ctx, userID)
}

// Gate turns membership lookups into access decisions. Lookup failures
// count as "not a member". A Gate without a checker admits everyone.
type Gate struct {
	checker MembershipChecker
}

// NewGate wraps checker; nil disables the gate.
func NewGate(checker MembershipChecker) *Gate {
	return &Gate{checker: checker}
}

// Enabled reports whether membership is enforced.
func (g *Gate) Enabled() bool {
	return g != nil && g.checker != nil
}

// Check returns ErrNotMember unless userID is a confirmed member.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	if !g.Enabled() {
		return nil
	}
	ok, err := g.checker.IsMember(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "relay.access", "access.membership",
			slog.String("status", "denied"),
			slog.String("reason", "lookup_failed"),
			slog.String("err", err.Error()),
		)
		return ErrNotMember
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
