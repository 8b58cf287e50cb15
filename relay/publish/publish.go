// Package publish formats accepted submissions and posts them to the
// broadcast channel.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/core/telegram/format"
	"github.com/m3rciful/proxyrelay/core/telegram/keyboard"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"

	tele "gopkg.in/telebot.v4"
)

const (
	connectButtonText = "🔌 اتصال"
	operatorLabel     = "اپراتور: "
	senderLabel       = "ارسال‌کننده: "
)

// Post is the content of one broadcast message.
type Post struct {
	Kind        validate.Kind
	DisplayName string
	Operator    string
	Payload     string
}

// PostFrom copies the publishable fields of a submission.
func PostFrom(sub submission.Submission) Post {
	return Post{
		Kind:        sub.Kind,
		DisplayName: sub.DisplayName,
		Operator:    sub.Operator,
		Payload:     sub.Payload,
	}
}

// Result describes a delivered post.
type Result struct {
	MessageID int
	ChatID    int64
}

// DeliveryError wraps a failed channel send.
type DeliveryError struct {
	Kind validate.Kind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Code is read by the router's handler summary.
func (e *DeliveryError) Code() string { return "DELIVERY" }

// Sender is the subset of *tele.Bot the publisher needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Channel resolves a configured destination: a numeric chat id or an
// @username.
func Channel(dest string) (tele.Recipient, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil, errors.New("publish: empty destination")
	}
	if id, err := strconv.ParseInt(dest, 10, 64); err == nil {
		return tele.ChatID(id), nil
	}
	name := strings.TrimPrefix(dest, "@")
	if name == "" || strings.ContainsAny(name, " /") {
		return nil, fmt.Errorf("publish: invalid destination %q", dest)
	}
	return username(name), nil
}

type username string

func (u username) Recipient() string { return "@" + string(u) }

// Publisher posts formatted submissions to one fixed channel.
type Publisher struct {
	sender Sender
	to     tele.Recipient
	footer string
}

// New returns a publisher for the given destination and footer tag.
func New(sender Sender, to tele.Recipient, footer string) *Publisher {
	return &Publisher{sender: sender, to: to, footer: footer}
}

// Publish sends exactly one message for p. It never retries.
func (pb *Publisher) Publish(ctx context.Context, p Post) (Result, error) {
	text := Format(p, pb.footer)
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           ConnectMarkup(p),
	}

	start := time.Now()
	msg, err := pb.sender.Send(pb.to, text, opts)
	attrs := []slog.Attr{
		slog.String("kind", p.Kind.String()),
		slog.String("operator", p.Operator),
		slog.String("channel", pb.to.Recipient()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("outcome", "fail"),
			slog.String("err", err.Error()),
		)
		logger.Error(ctx, "relay.publish", "publish.send", attrs...)
		return Result{}, &DeliveryError{Kind: p.Kind, Err: err}
	}

	res := Result{}
	if msg != nil {
		res.MessageID = msg.ID
		if msg.Chat != nil {
			res.ChatID = msg.Chat.ID
		}
	}
	attrs = append(attrs,
		slog.String("outcome", "published"),
		slog.Int("message_id", res.MessageID),
	)
	logger.Info(ctx, "relay.publish", "publish.send", attrs...)
	return res, nil
}

// Format renders the HTML body of a post.
func Format(p Post, footer string) string {
	tag := "#v2ray"
	if p.Kind == validate.Proxy {
		tag = "#proxy"
	}
	return format.Lines(
		tag,
		"",
		format.Code(strings.TrimSpace(p.Payload)),
		"",
		operatorLabel+format.EscapeHTML(submission.OperatorLabel(p.Operator)),
		senderLabel+format.EscapeHTML(p.DisplayName),
		"",
		format.EscapeHTML(footer),
	)
}

// ConnectMarkup returns the one-tap connect button for proxy posts and nil
// for everything else.
func ConnectMarkup(p Post) *tele.ReplyMarkup {
	if p.Kind != validate.Proxy {
		return nil
	}
	link := buttonURL(p.Payload)
	if link == "" {
		return nil
	}
	return keyboard.Inline([]keyboard.Button{keyboard.Link(connectButtonText, link)})
}

// buttonURL gives schemeless t.me links an https scheme; Telegram rejects
// button URLs without one. Payloads that are not a single parseable URL
// yield "" because an invalid button fails the whole sendMessage.
func buttonURL(payload string) string {
	link := strings.TrimSpace(payload)
	if link == "" || strings.ContainsFunc(link, unicode.IsSpace) {
		return ""
	}
	if len(link) >= 5 && strings.EqualFold(link[:5], "t.me/") {
		link = "https://" + link
	}
	if u, err := url.Parse(link); err != nil || u.Scheme == "" {
		return ""
	}
	return link
}
