package router

import (
	"time"

	tg "github.com/m3rciful/proxyrelay/core/telegram"
	"github.com/m3rciful/proxyrelay/core/telegram/middleware"
	"github.com/m3rciful/proxyrelay/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text from users with an open dialogue.
type Conversation interface {
	InProgress(userID int64) bool
	Continue(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// FallbackOptions derives text and callback fallbacks from a provider.
func FallbackOptions(p ui.FallbackProvider) (TextOptions, CallbackOptions) {
	if p == nil {
		return TextOptions{}, CallbackOptions{}
	}
	text := TextOptions{UnknownText: p.UnknownText(), UnknownDocument: p.UnknownDocument()}
	return text, CallbackOptions{NotFound: p.UnknownCallback()}
}

// TextRoutes builds handlers for text and media updates. Commands typed
// as text win over an open conversation; anything else goes to the
// conversation, then to opts.UnknownText.
// Captioned media count as text for an open conversation.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	inProgress := func(c tele.Context) bool {
		user := c.Sender()
		return conv != nil && user != nil && conv.InProgress(user.ID)
	}

	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				name := handlerName(key)
				return newSummary(name).run(c, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if inProgress(c) {
			return newSummary("conversation").run(c, func() error {
				return conv.Continue(c)
			})
		}

		if opts.UnknownText != nil {
			return newSummary("unknown_text").run(c, func() error {
				return opts.UnknownText(c)
			})
		}

		summary{name: "unknown_text", start: start, status: "skip"}.log(c, nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if c.Text() != "" && inProgress(c) {
			return newSummary("conversation_caption").run(c, func() error {
				return conv.Continue(c)
			})
		}
		if opts.UnknownDocument != nil {
			return newSummary("unexpected_document").run(c, func() error {
				return opts.UnknownDocument(c)
			})
		}
		summary{name: "unexpected_document", start: start, status: "skip"}.log(c, nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.Recover(middleware.UpdateLogger(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.Recover(middleware.UpdateLogger(docHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.Recover(middleware.UpdateLogger(docHandler)),
		},
	}
}
