package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/proxyrelay/core/config"
	"github.com/m3rciful/proxyrelay/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain in order: panic recovery, the
// per-user rate limit when configured, update logging and reply counting.
// onLimited answers throttled updates; nil drops them silently.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.Recover}}
	if limit := rateLimit(cfg, onLimited); limit != nil {
		chain = append(chain, Middleware{Name: "rate_limit", Use: limit})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.UpdateLogger},
		Middleware{Name: "replies", Use: middleware.CountReplies},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited func(tele.Context) error) func(tele.HandlerFunc) tele.HandlerFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	opts := middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates)),
		OnLimited: onLimited,
	}
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		opts.Exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return middleware.RateLimitMiddleware(opts)
}
