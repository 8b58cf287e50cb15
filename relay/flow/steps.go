package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/relay/publish"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

// StartSubmission opens a fresh submission, discarding any open one.
func (c *Controller) StartSubmission(ctx context.Context, userID int64) Reply {
	if r, ok := c.allow(ctx, userID, "start"); !ok {
		return r
	}
	if r, ok := c.member(ctx, userID, "start"); !ok {
		return r
	}
	sub := c.open(ctx, userID)
	return prompt(sub)
}

// CheckJoin re-checks sponsor membership after the user claims to have joined.
func (c *Controller) CheckJoin(ctx context.Context, userID int64) Reply {
	if r, ok := c.allow(ctx, userID, "check_join"); !ok {
		return r
	}
	if c.gate != nil {
		if err := c.gate.Check(ctx, userID); err != nil {
			c.denied(ctx, userID, "check_join", err)
			return Reply{Screen: ScreenNotJoined, Err: err}
		}
	}
	return Reply{Screen: ScreenMenu}
}

func (c *Controller) open(ctx context.Context, userID int64) submission.Submission {
	replaced := c.sessions.Delete(userID)
	sub := submission.New(userID, c.now())
	c.sessions.Put(sub)
	c.rec.SubmissionStarted()
	logger.Info(logger.WithSubmission(ctx, sub.ID), "relay.flow", "flow.start",
		slog.String("status", "ok"),
		slog.Bool("replaced", replaced),
	)
	return sub
}

// SelectType records the kind. From idle it starts a new submission first.
func (c *Controller) SelectType(ctx context.Context, userID int64, kind validate.Kind) Reply {
	if r, ok := c.allow(ctx, userID, "select_type"); !ok {
		return r
	}
	sub, ok := c.sessions.Get(userID)
	if !ok {
		if r, ok := c.member(ctx, userID, "select_type"); !ok {
			return r
		}
		sub = c.open(ctx, userID)
	}
	if sub.Step != submission.AwaitingType {
		return prompt(sub)
	}
	if kind != validate.Proxy && kind != validate.V2Ray {
		return c.reject(ctx, sub, "unknown_kind")
	}

	sub.Kind = kind
	sub.Step = submission.AwaitingName
	c.save(sub)
	c.logTransition(ctx, sub, submission.AwaitingType)
	return prompt(sub)
}

// SubmitText feeds free text to the current step.
func (c *Controller) SubmitText(ctx context.Context, userID int64, text string) Reply {
	if r, ok := c.allow(ctx, userID, "submit_text"); !ok {
		return r
	}
	sub, ok := c.sessions.Get(userID)
	if !ok {
		return c.idleText(ctx, userID)
	}

	switch sub.Step {
	case submission.AwaitingName:
		name := validate.CleanName(text)
		if name == "" {
			return c.reject(ctx, sub, "empty_name")
		}
		sub.DisplayName = name
		sub.Step = submission.AwaitingOperator
		c.save(sub)
		c.logTransition(ctx, sub, submission.AwaitingName)
		return prompt(sub)
	case submission.AwaitingPayload:
		if !validate.Matches(sub.Kind, text) {
			return c.reject(ctx, sub, "payload_mismatch")
		}
		sub.Payload = strings.TrimSpace(text)
		return c.publish(ctx, sub)
	default:
		return prompt(sub)
	}
}

// idleText answers free text from users without a submission.
func (c *Controller) idleText(ctx context.Context, userID int64) Reply {
	if c.gate != nil && c.gate.Check(ctx, userID) != nil {
		return Reply{Screen: ScreenStartHint}
	}
	return Reply{Screen: ScreenMenu}
}

// SelectOperator records the operator tag.
func (c *Controller) SelectOperator(ctx context.Context, userID int64, key string) Reply {
	if r, ok := c.allow(ctx, userID, "select_operator"); !ok {
		return r
	}
	sub, ok := c.sessions.Get(userID)
	if !ok {
		return c.idleText(ctx, userID)
	}
	if sub.Step != submission.AwaitingOperator {
		return prompt(sub)
	}
	if !submission.IsOperator(key) {
		return c.reject(ctx, sub, "unknown_operator")
	}

	sub.Operator = key
	sub.Step = submission.AwaitingPayload
	c.save(sub)
	c.logTransition(ctx, sub, submission.AwaitingOperator)
	return prompt(sub)
}

// Cancel discards the open submission, if any.
func (c *Controller) Cancel(ctx context.Context, userID int64) Reply {
	sub, ok := c.sessions.Get(userID)
	c.sessions.Delete(userID)
	if ok {
		logger.Info(logger.WithSubmission(ctx, sub.ID), "relay.flow", "flow.cancel",
			slog.String("status", "cancelled"),
			slog.String("step", string(sub.Step)),
		)
	}
	if r, ok := c.allow(ctx, userID, "cancel"); !ok {
		return r
	}
	return Reply{Screen: ScreenCancelled}
}

// publish claims the completed submission and sends it once. The claim
// discards it whatever the outcome; a caller that loses the claim to a
// concurrent update publishes nothing.
func (c *Controller) publish(ctx context.Context, sub submission.Submission) Reply {
	ctx = logger.WithSubmission(ctx, sub.ID)
	if !c.sessions.Take(sub.UserID, sub.ID) {
		logger.Info(ctx, "relay.flow", "flow.publish",
			slog.String("status", "skip"),
			slog.String("reason", "already_claimed"),
		)
		return Reply{Screen: ScreenMenu}
	}
	if !sub.Ready() {
		logger.Error(ctx, "relay.flow", "flow.publish",
			slog.String("outcome", "rejected"),
			slog.String("reason", "incomplete"),
		)
		return Reply{Screen: ScreenMenu}
	}

	_, err := c.publisher.Publish(ctx, publish.PostFrom(sub))
	if err != nil {
		c.rec.PublishFailed(sub.Kind)
		var de *publish.DeliveryError
		if !errors.As(err, &de) {
			err = &publish.DeliveryError{Kind: sub.Kind, Err: err}
		}
		logger.Warn(ctx, "relay.flow", "flow.publish",
			slog.String("outcome", "fail"),
			slog.String("kind", sub.Kind.String()),
			slog.String("err", err.Error()),
		)
		return Reply{Screen: ScreenDeliveryFailed, Kind: sub.Kind, Err: err}
	}

	c.rec.Published(sub.Kind)
	logger.Info(ctx, "relay.flow", "flow.publish",
		slog.String("outcome", "published"),
		slog.String("kind", sub.Kind.String()),
		slog.String("operator", sub.Operator),
		slog.Int64("elapsed_ms", c.now().Sub(sub.StartedAt).Milliseconds()),
	)
	return Reply{Screen: ScreenPublished, Kind: sub.Kind}
}
