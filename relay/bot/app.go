// Package bot wires the relay onto the Telegram runtime: commands,
// callbacks, free text and lifecycle hooks.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/proxyrelay/core/logger"
	tg "github.com/m3rciful/proxyrelay/core/telegram"
	"github.com/m3rciful/proxyrelay/core/telegram/callbacks"
	"github.com/m3rciful/proxyrelay/core/telegram/commands"
	tghelpers "github.com/m3rciful/proxyrelay/core/telegram/helpers"
	"github.com/m3rciful/proxyrelay/core/telegram/router"
	"github.com/m3rciful/proxyrelay/relay/access"
	"github.com/m3rciful/proxyrelay/relay/config"
	"github.com/m3rciful/proxyrelay/relay/flow"
	"github.com/m3rciful/proxyrelay/relay/metrics"
	"github.com/m3rciful/proxyrelay/relay/publish"
	"github.com/m3rciful/proxyrelay/relay/store"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"

	tele "gopkg.in/telebot.v4"
)

// App owns the relay components for one bot process.
type App struct {
	cfg      *config.Config
	store    store.Store
	policy   *access.Policy
	sessions *submission.Store
	metrics  *metrics.Metrics
	reg      *tg.Registry
	target   tele.Recipient
	sponsor  tele.Recipient

	// ctrl is built in wire once the bot exists.
	ctrl *flow.Controller
}

// New opens storage, loads the access policy and registers handlers.
// db is only used by the postgres store driver.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}
	target, err := publish.Channel(cfg.Channels.Target)
	if err != nil {
		return nil, fmt.Errorf("bot: broadcast channel: %w", err)
	}
	var sponsor tele.Recipient
	if cfg.SponsorEnabled() {
		if sponsor, err = publish.Channel(cfg.Channels.SponsorID); err != nil {
			return nil, fmt.Errorf("bot: sponsor channel: %w", err)
		}
	}

	st, err := store.Open(ctx, cfg.Store, db)
	if err != nil {
		return nil, err
	}
	policy, err := access.Load(ctx, st, cfg.Telegram.AdminIDs)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		store:    st,
		policy:   policy,
		sessions: submission.NewStore(),
		reg:      tg.NewRegistry(),
		target:   target,
		sponsor:  sponsor,
	}
	a.metrics = metrics.New(a.sessions.Len)
	if err := a.register(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// TelegramRunOptions implements the runner contract.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.reg,
		Middlewares: tg.DefaultMiddlewares(core, a.onRateLimited),
		Wire:        a.wire,
		OnStart:     a.onStart,
	}, nil
}

func (a *App) register() error {
	cmds := map[string]commands.Command{
		"/start":   {Handler: a.onStartCommand, Description: "شروع و منوی اصلی"},
		"/cancel":  {Handler: a.onCancel, Description: "لغو ارسال جاری"},
		"/status":  {Handler: a.onStatus, Description: "وضعیت ربات", AdminOnly: true},
		"/enable":  {Handler: a.onEnable, Description: "فعال‌سازی ربات", AdminOnly: true},
		"/disable": {Handler: a.onDisable, Description: "غیرفعال‌سازی ربات", AdminOnly: true},
		"/ban":     {Handler: a.onBan, Description: "مسدود کردن کاربر", AdminOnly: true},
		"/unban":   {Handler: a.onUnban, Description: "رفع مسدودیت کاربر", AdminOnly: true},
	}
	for name, cmd := range cmds {
		if err := a.reg.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	cbs := map[string]tele.HandlerFunc{
		cbType:      a.onType,
		cbOperator:  a.onOperator,
		cbCancel:    a.onCancel,
		cbCheckJoin: a.onCheckJoin,
	}
	for key, h := range cbs {
		if err := a.reg.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	return nil
}

// wire builds the controller around the live bot and returns the routes.
func (a *App) wire(_ context.Context, rt tg.Runtime) ([]tg.Route, error) {
	if err := a.buildController(rt.Bot, rt.Bot); err != nil {
		return nil, err
	}
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{IsAdmin: a.policy.IsAdmin})
	textOpts, cbOpts := router.FallbackOptions(a)
	routes = append(routes, router.TextRoutes(a, a.reg, textOpts)...)
	routes = append(routes, router.CallbackRoute(a.reg, cbOpts))
	return routes, nil
}

func (a *App) buildController(sender publish.Sender, lookup memberLookup) error {
	var gate flow.Gate
	if a.sponsor != nil {
		gate = access.NewGate(channelMembership{bot: lookup, chat: a.sponsor})
	}
	ctrl, err := flow.New(flow.Options{
		Policy:    a.policy,
		Gate:      gate,
		Publisher: publish.New(sender, a.target, a.cfg.Channels.FooterTag),
		Sessions:  a.sessions,
		Recorder:  a.metrics,
	})
	if err != nil {
		return err
	}
	a.ctrl = ctrl
	return nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	go a.sessions.RunJanitor(ctx, a.cfg.Session.SweepInterval, *a.cfg.Session.MaxIdle)
	if addr := a.cfg.Metrics.Listen; addr != "" {
		go func() { _ = a.metrics.Serve(ctx, addr) }()
	}
	logger.Info(ctx, "relay.bot", "relay.start",
		slog.String("status", "ok"),
		slog.String("store", a.cfg.Store.Driver),
		slog.Bool("sponsor_gate", a.sponsor != nil),
		slog.Bool("enabled", a.policy.IsEnabled()),
	)
	return nil
}

func userID(c tele.Context) (int64, bool) {
	if u := c.Sender(); u != nil {
		return u.ID, true
	}
	return 0, false
}

// handle runs op for the sender and renders the reply. Only failures the
// user cannot fix are returned to the router.
func (a *App) handle(c tele.Context, op func(ctx context.Context, uid int64) flow.Reply) error {
	uid, ok := userID(c)
	if !ok {
		return nil
	}
	r := op(tghelpers.BuildContext(c), uid)
	if err := a.render(c, r); err != nil {
		return err
	}
	switch r.Screen {
	case flow.ScreenDeliveryFailed, flow.ScreenAdminFailed:
		return r.Err
	}
	return nil
}

func (a *App) onStartCommand(c tele.Context) error {
	return a.handle(c, a.ctrl.StartSubmission)
}

func (a *App) onCancel(c tele.Context) error {
	return a.handle(c, a.ctrl.Cancel)
}

func (a *App) onCheckJoin(c tele.Context) error {
	return a.handle(c, a.ctrl.CheckJoin)
}

func (a *App) onType(c tele.Context) error {
	kind, _ := validate.ParseKind(callbacks.Payload(c))
	return a.handle(c, func(ctx context.Context, uid int64) flow.Reply {
		return a.ctrl.SelectType(ctx, uid, kind)
	})
}

func (a *App) onOperator(c tele.Context) error {
	key := callbacks.Payload(c)
	return a.handle(c, func(ctx context.Context, uid int64) flow.Reply {
		return a.ctrl.SelectOperator(ctx, uid, key)
	})
}

func (a *App) onText(c tele.Context) error {
	text := c.Text()
	return a.handle(c, func(ctx context.Context, uid int64) flow.Reply {
		return a.ctrl.SubmitText(ctx, uid, text)
	})
}

func (a *App) onStatus(c tele.Context) error {
	return a.handle(c, a.ctrl.Status)
}

func (a *App) onEnable(c tele.Context) error {
	return a.handle(c, a.ctrl.Enable)
}

func (a *App) onDisable(c tele.Context) error {
	return a.handle(c, a.ctrl.Disable)
}

func (a *App) onBan(c tele.Context) error {
	arg := commandArg(c)
	return a.handle(c, func(ctx context.Context, uid int64) flow.Reply {
		return a.ctrl.Ban(ctx, uid, arg)
	})
}

func (a *App) onUnban(c tele.Context) error {
	arg := commandArg(c)
	return a.handle(c, func(ctx context.Context, uid int64) flow.Reply {
		return a.ctrl.Unban(ctx, uid, arg)
	})
}

// commandArg returns the text after the command word.
func commandArg(c tele.Context) string {
	fields := strings.Fields(c.Text())
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}

func (a *App) onRateLimited(c tele.Context) error {
	return tghelpers.SendText(c, textRateLimited)
}

// InProgress implements router.Conversation.
func (a *App) InProgress(userID int64) bool {
	return a.ctrl != nil && a.ctrl.InProgress(userID)
}

// Continue implements router.Conversation.
func (a *App) Continue(c tele.Context) error { return a.onText(c) }

// UnknownText implements ui.FallbackProvider. Idle users get the menu or
// the start hint.
func (a *App) UnknownText() tele.HandlerFunc { return a.onText }

// UnknownDocument implements ui.FallbackProvider.
func (a *App) UnknownDocument() tele.HandlerFunc { return a.onText }

// UnknownCallback implements ui.FallbackProvider. Stale buttons are ignored.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}
