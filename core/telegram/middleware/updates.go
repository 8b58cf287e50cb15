package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/proxyrelay/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update ids. The update middleware runs
// both globally and per route, so the same update passes through it twice.
type receipts struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

var updateReceipts = &receipts{ttl: 10 * time.Second, seen: map[int]time.Time{}}

// first reports whether id has not been seen within ttl, and marks it seen.
func (r *receipts) first(id int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, at := range r.seen {
		if now.Sub(at) > r.ttl {
			delete(r.seen, k)
		}
	}
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = now
	return true
}

// UpdateLogger gives every update a correlation id and a logging context,
// then writes a sampled debug receipt for it.
func UpdateLogger(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatType tele.ChatType
		if chat := c.Chat(); chat != nil {
			chatType = chat.Type
		}
		ctx := tghelpers.NewUpdateContext(c)
		c.Set("rid", logger.RIDFrom(ctx))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && updateReceipts.first(upd.ID, time.Now()) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c, upd, chatType)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update, chatType tele.ChatType) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chatType != "" {
		attrs = append(attrs, slog.String("chat_type", string(chatType)))
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
			slog.String("op", logger.SanitizeLimit(payload, 64)),
		)
	case upd.Message != nil:
		if text := c.Text(); len(text) > 0 && text[0] == '/' {
			attrs = append(attrs, slog.String("op", logger.SanitizeLimit(text, 64)))
		}
	}
	return attrs
}
