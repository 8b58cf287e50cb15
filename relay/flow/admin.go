package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// Admin actions.
const (
	ActionEnable  = "enable"
	ActionDisable = "disable"
	ActionBan     = "ban"
	ActionUnban   = "unban"
)

// Status reports the policy and the number of open submissions.
func (c *Controller) Status(ctx context.Context, userID int64) Reply {
	if !c.policy.IsAdmin(userID) {
		return Reply{}
	}
	return Reply{
		Screen: ScreenStatus,
		Status: &Status{Snapshot: c.policy.Snapshot(), OpenSubmissions: c.sessions.Len()},
	}
}

// Enable turns the service on for everyone.
func (c *Controller) Enable(ctx context.Context, userID int64) Reply {
	return c.setEnabled(ctx, userID, true)
}

// Disable restricts the service to administrators.
func (c *Controller) Disable(ctx context.Context, userID int64) Reply {
	return c.setEnabled(ctx, userID, false)
}

func (c *Controller) setEnabled(ctx context.Context, userID int64, enabled bool) Reply {
	if !c.policy.IsAdmin(userID) {
		return Reply{}
	}
	action := ActionDisable
	if enabled {
		action = ActionEnable
	}
	if err := c.policy.SetEnabled(ctx, enabled); err != nil {
		return c.adminFailed(ctx, action, 0, err)
	}
	c.adminDone(ctx, action, 0)
	return Reply{Screen: ScreenAdminDone, Action: action}
}

// Ban bans the user id given in arg. Open submissions of the target are
// discarded.
func (c *Controller) Ban(ctx context.Context, userID int64, arg string) Reply {
	if !c.policy.IsAdmin(userID) {
		return Reply{}
	}
	target, ok := parseTarget(arg)
	if !ok {
		return Reply{Screen: ScreenAdminUsage, Action: ActionBan}
	}
	if err := c.policy.Ban(ctx, target); err != nil {
		return c.adminFailed(ctx, ActionBan, target, err)
	}
	c.sessions.Delete(target)
	c.adminDone(ctx, ActionBan, target)
	return Reply{Screen: ScreenAdminDone, Action: ActionBan, Target: target}
}

// Unban lifts a ban on the user id given in arg.
func (c *Controller) Unban(ctx context.Context, userID int64, arg string) Reply {
	if !c.policy.IsAdmin(userID) {
		return Reply{}
	}
	target, ok := parseTarget(arg)
	if !ok {
		return Reply{Screen: ScreenAdminUsage, Action: ActionUnban}
	}
	if err := c.policy.Unban(ctx, target); err != nil {
		return c.adminFailed(ctx, ActionUnban, target, err)
	}
	c.adminDone(ctx, ActionUnban, target)
	return Reply{Screen: ScreenAdminDone, Action: ActionUnban, Target: target}
}

func (c *Controller) adminDone(ctx context.Context, action string, target int64) {
	logger.Info(ctx, "relay.flow", "flow.admin",
		slog.String("status", "ok"),
		slog.String("action", action),
		slog.Int64("target_id", target),
	)
}

func (c *Controller) adminFailed(ctx context.Context, action string, target int64, err error) Reply {
	logger.Error(ctx, "relay.flow", "flow.admin",
		slog.String("status", "fail"),
		slog.String("action", action),
		slog.Int64("target_id", target),
		slog.String("err", err.Error()),
	)
	return Reply{Screen: ScreenAdminFailed, Action: action, Target: target, Err: err}
}

func parseTarget(arg string) (int64, bool) {
	fields := strings.Fields(arg)
	if len(fields) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
