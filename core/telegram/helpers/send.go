package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the Send helpers through d. Nil makes them
// synchronous again.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := []any{}
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", "sendMessage", func() error { return c.Send(text, args...) })
}

// SendHTML sends an HTML message with link previews disabled.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := htmlOptions(markup)
	return deliver(c, "send.html", "sendMessage", func() error { return c.Send(text, opts) })
}

// EditOrSendHTML replaces the message behind a callback, or sends a new one
// when there is nothing to edit.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := htmlOptions(markup)
	return deliver(c, "edit.html", "editMessageText", func() error { return c.EditOrSend(text, opts) })
}

func htmlOptions(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// deliver queues run on the chat's worker. When no dispatcher is installed,
// or its queue cannot take the job, run executes inline.
func deliver(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, chatKey(c), action, endpoint, run)
	if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
		return err
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("op", action),
		slog.String("err", err.Error()),
	)
	return run()
}

func chatKey(c tele.Context) int64 {
	switch {
	case c.Chat() != nil:
		return c.Chat().ID
	case c.Sender() != nil:
		return c.Sender().ID
	}
	return 0
}
