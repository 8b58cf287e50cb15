// Package flow drives the guided submission dialogue: type, name, operator,
// payload, publish.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/relay/access"
	"github.com/m3rciful/proxyrelay/relay/publish"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

// Policy is the access policy consulted before every action.
type Policy interface {
	Check(userID int64) error
	IsAdmin(userID int64) bool
	Ban(ctx context.Context, userID int64) error
	Unban(ctx context.Context, userID int64) error
	SetEnabled(ctx context.Context, enabled bool) error
	Snapshot() access.Snapshot
}

// Gate is the sponsor channel membership check.
type Gate interface {
	Check(ctx context.Context, userID int64) error
}

// Publisher posts a completed submission.
type Publisher interface {
	Publish(ctx context.Context, p publish.Post) (publish.Result, error)
}

// Recorder receives flow counters.
type Recorder interface {
	SubmissionStarted()
	Published(kind validate.Kind)
	PublishFailed(kind validate.Kind)
	Rejected(step submission.Step)
	Denied(reason string)
}

type nopRecorder struct{}

func (nopRecorder) SubmissionStarted()          {}
func (nopRecorder) Published(validate.Kind)     {}
func (nopRecorder) PublishFailed(validate.Kind) {}
func (nopRecorder) Rejected(submission.Step)    {}
func (nopRecorder) Denied(string)               {}

// Options configures a Controller. Policy, Publisher and Sessions are required.
type Options struct {
	Policy    Policy
	Gate      Gate
	Publisher Publisher
	Sessions  *submission.Store
	Recorder  Recorder
	Now       func() time.Time
}

// Controller runs the submission state machine. It is safe for concurrent
// use; actions for different users never share state.
type Controller struct {
	policy    Policy
	gate      Gate
	publisher Publisher
	sessions  *submission.Store
	rec       Recorder
	now       func() time.Time
}

// New validates opts and returns a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Policy == nil {
		return nil, errors.New("flow: policy is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("flow: publisher is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("flow: session store is required")
	}
	c := &Controller{
		policy:    opts.Policy,
		gate:      opts.Gate,
		publisher: opts.Publisher,
		sessions:  opts.Sessions,
		rec:       opts.Recorder,
		now:       opts.Now,
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// InProgress reports whether userID has an open submission.
func (c *Controller) InProgress(userID int64) bool {
	_, ok := c.sessions.Get(userID)
	return ok
}

// IsAdmin reports whether userID may run admin commands.
func (c *Controller) IsAdmin(userID int64) bool {
	return c.policy.IsAdmin(userID)
}

// allow re-checks the policy and, on denial, discards any open submission.
func (c *Controller) allow(ctx context.Context, userID int64, action string) (Reply, bool) {
	err := c.policy.Check(userID)
	if err == nil {
		return Reply{}, true
	}
	return c.deny(ctx, userID, action, err), false
}

func (c *Controller) member(ctx context.Context, userID int64, action string) (Reply, bool) {
	if c.gate == nil {
		return Reply{}, true
	}
	err := c.gate.Check(ctx, userID)
	if err == nil {
		return Reply{}, true
	}
	return c.deny(ctx, userID, action, err), false
}

func (c *Controller) deny(ctx context.Context, userID int64, action string, err error) Reply {
	c.denied(ctx, userID, action, err)
	if errors.Is(err, access.ErrNotMember) {
		return Reply{Screen: ScreenJoin, Err: err}
	}
	return Reply{Screen: ScreenDenied, Err: err}
}

// denied discards the user's submission, counts the denial and logs it.
// Errors outside the access taxonomy are logged as warnings.
func (c *Controller) denied(ctx context.Context, userID int64, action string, err error) {
	discarded := c.sessions.Delete(userID)
	reason := denyReason(err)
	c.rec.Denied(reason)
	attrs := []slog.Attr{
		slog.String("status", "denied"),
		slog.String("action", action),
		slog.String("reason", reason),
		slog.Bool("discarded", discarded),
	}
	if !access.IsDenied(err) {
		logger.Warn(ctx, "relay.flow", "flow.denied", append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logger.Info(ctx, "relay.flow", "flow.denied", attrs...)
}

func denyReason(err error) string {
	switch {
	case errors.Is(err, access.ErrBanned):
		return "banned"
	case errors.Is(err, access.ErrDisabled):
		return "disabled"
	case errors.Is(err, access.ErrNotMember):
		return "not_member"
	default:
		return "unknown"
	}
}

func (c *Controller) save(sub submission.Submission) {
	sub.UpdatedAt = c.now()
	c.sessions.Put(sub)
}

func (c *Controller) logTransition(ctx context.Context, sub submission.Submission, from submission.Step) {
	logger.Info(logger.WithSubmission(ctx, sub.ID), "relay.flow", "flow.transition",
		slog.String("status", "ok"),
		slog.String("from", string(from)),
		slog.String("to", string(sub.Step)),
	)
}

func (c *Controller) reject(ctx context.Context, sub submission.Submission, reason string) Reply {
	err := &ValidationError{Step: sub.Step, Reason: reason}
	c.rec.Rejected(sub.Step)
	logger.Info(logger.WithSubmission(ctx, sub.ID), "relay.flow", "flow.reject",
		slog.String("status", "rejected"),
		slog.String("step", string(sub.Step)),
		slog.String("reason", reason),
	)
	r := prompt(sub)
	r.Err = err
	return r
}

// prompt re-asks the question of the current step.
func prompt(sub submission.Submission) Reply {
	switch sub.Step {
	case submission.AwaitingName:
		return Reply{Screen: ScreenAskName, Kind: sub.Kind}
	case submission.AwaitingOperator:
		return Reply{Screen: ScreenAskOperator, Kind: sub.Kind}
	case submission.AwaitingPayload:
		return Reply{Screen: ScreenAskPayload, Kind: sub.Kind}
	default:
		return Reply{Screen: ScreenAskType}
	}
}
