package router

import (
	"log/slog"

	"github.com/m3rciful/proxyrelay/core/logger"
	tg "github.com/m3rciful/proxyrelay/core/telegram"
	"github.com/m3rciful/proxyrelay/core/telegram/callbacks"
	"github.com/m3rciful/proxyrelay/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, payload := callbacks.Parse(c.Callback())
		name := "callback." + handlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}
		if payload != "" {
			extras = append(extras, slog.String("payload", logger.SanitizeLimit(payload, 64)))
		}

		_ = c.Respond()

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return newSummary(name, extras...).run(c, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			})
		}

		return newSummary(name, extras...).run(c, func() error {
			return cbHandler(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.Recover(middleware.UpdateLogger(handler)),
	}
}
