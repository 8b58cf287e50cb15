package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/proxyrelay/core/config"
	"github.com/m3rciful/proxyrelay/core/logger"
	tghelpers "github.com/m3rciful/proxyrelay/core/telegram/helpers"
	tgsender "github.com/m3rciful/proxyrelay/core/telegram/sender"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint (a command, tele.OnText...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configures RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	// Wire builds routes that need the live bot, such as a channel publisher.
	// It runs after the bot is created and before updates are consumed.
	Wire func(ctx context.Context, rt Runtime) ([]Route, error)

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to Wire and the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middleware and routes, and serves
// updates until ctx is cancelled. Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, cfg)
	if err != nil {
		return err
	}

	rt := Runtime{Bot: bot, Dispatcher: tgsender.NewDispatcher(opts.DispatcherOptions), Registry: opts.Registry}
	tghelpers.SetDispatcher(rt.Dispatcher)
	defer func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	routes := opts.Routes
	if opts.Wire != nil {
		wired, err := opts.Wire(ctx, rt)
		if err != nil {
			return fmt.Errorf("telegram: wiring failed: %w", err)
		}
		routes = append(append([]Route(nil), routes...), wired...)
	}
	for _, r := range routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, opts.Registry, cfg.Telegram.AdminIDs)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		bot.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}

	if opts.OnStop != nil {
		return opts.OnStop(context.Background(), rt)
	}
	return nil
}

// newBot creates the telebot instance for cfg and logs the chosen update
// mode. Long polling clears a stale webhook first.
func newBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	tc := cfg.Telegram
	poller := BuildPoller(PollerOptions{
		RunMode:                tc.RunMode,
		LongPollTimeoutSeconds: tc.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
	client, err := BuildHTTPClient(HTTPOptions{
		ProxyURL:       tc.ProxyURL,
		ConnectTimeout: seconds(tc.ConnectTimeoutSeconds),
		ReadTimeout:    seconds(tc.ReadTimeoutSeconds),
		WriteTimeout:   seconds(tc.WriteTimeoutSeconds),
		PollTimeout:    longPollTimeout(tc.LongPollTimeoutSeconds),
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  tc.Token,
		Poller: poller,
		Client: client,
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.Error(ctx, "tg", "tg.error", slog.String("status", "fail"), slog.String("err", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	attrs := []slog.Attr{slog.Duration("duration", time.Since(start))}
	if wh, ok := poller.(*tele.Webhook); ok {
		logger.Info(ctx, "tg", "mode", append(attrs,
			slog.String("mode", "webhook"),
			slog.String("listen", wh.Listen),
		)...)
		return bot, nil
	}
	logger.Info(ctx, "tg", "mode", append(attrs,
		slog.String("mode", "polling"),
		slog.Bool("proxy", tc.ProxyURL != ""),
	)...)
	if strings.EqualFold(tc.RunMode, coreconfig.RunModeLongpoll) {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}
	return bot, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
