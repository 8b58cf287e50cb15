package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrInvalidRegistration reports an empty name, a missing handler or a
// missing description.
var ErrInvalidRegistration = errors.New("telegram: invalid registration")

// Registry maps slash commands and callback keys to handlers. It is filled
// during startup and read concurrently while serving updates.
type Registry struct {
	mu              sync.RWMutex
	commands        map[string]commands.Command
	callbacks       map[string]tele.HandlerFunc
	unknownCallback tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks are ignored; the
// callback router has already answered them.
func NewRegistry() *Registry {
	return &Registry{
		commands:        map[string]commands.Command{},
		callbacks:       map[string]tele.HandlerFunc{},
		unknownCallback: func(tele.Context) error { return nil },
	}
}

// RegisterCommand adds name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	var err error
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		err = ErrInvalidRegistration
	case name[0] != '/':
		err = fmt.Errorf("%w: command %q must start with '/'", ErrInvalidRegistration, name)
	}
	if err != nil {
		return wireWarn("register.command.skip", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return wireWarn("register.command.duplicate", name, fmt.Errorf("command already registered: %s", name))
	}
	r.commands[name] = cmd
	return nil
}

// RegisterCallback adds the handler for callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return wireWarn("register.callback.skip", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return wireWarn("register.callback.duplicate", key, fmt.Errorf("callback already registered: %s", key))
	}
	r.callbacks[key] = handler
	return nil
}

func wireWarn(event, key string, err error) error {
	logger.Warn(context.Background(), "tg.wire", event,
		slog.String("status", "skip"),
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
	return err
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// CallbackCount returns the number of registered callback keys.
func (r *Registry) CallbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// ListCommands returns the menu sorted by name. Hidden commands are never
// listed; admin-only ones only when withAdmin is set.
func (r *Registry) ListCommands(withAdmin bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || (cmd.AdminOnly && !withAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves the first word of text, such as "/ban 42" or
// "/start@relay_bot", to a registered command.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", commands.Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackNotFound returns the handler for unregistered callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.unknownCallback
}

// CommandSetter is the part of tele.API used to publish command menus.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public menu and, scoped to each admin's
// private chat, a menu that also lists admin commands.
func InitBotCommands(bot CommandSetter, reg *Registry, adminIDs []int64) {
	if bot == nil || reg == nil {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(reg.ListCommands(false)); err != nil {
		logger.Error(ctx, "tg.wire", "register.commands", slog.String("status", "fail"), slog.String("err", err.Error()))
		return
	}
	menu := reg.ListCommands(true)
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		if err := bot.SetCommands(menu, scope); err != nil {
			logger.Warn(ctx, "tg.wire", "register.commands.admin",
				slog.String("status", "fail"),
				slog.Int64("target_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}
