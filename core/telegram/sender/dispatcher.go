package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/proxyrelay/core/logger"
	"github.com/m3rciful/proxyrelay/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the owning worker's queue is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tunes the Dispatcher. Zero values select defaults.
type Options struct {
	Workers   int
	QueueSize int
	// MaxRetries applies only to failures netutil.ShouldRetry accepts.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the time one job may spend including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs user-facing Telegram calls off the update goroutine. Jobs
// for the same chat share a worker, so replies keep their order.
type Dispatcher struct {
	opts    Options
	workers []chan job
	wg      sync.WaitGroup
	failed  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker goroutines.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, workers: make([]chan job, opts.Workers)}
	d.wg.Add(len(d.workers))
	for i := range d.workers {
		d.workers[i] = make(chan job, opts.QueueSize)
		go d.work(d.workers[i])
	}
	return d
}

// Enqueue hands run to the worker owning key (usually a chat id). It never
// blocks: a full queue yields ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	if key < 0 {
		key = -key
	}
	select {
	case d.workers[key%int64(len(d.workers))] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many jobs ultimately failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		start := time.Now()
		attempts, err := d.attempt(j)
		attrs := []slog.Attr{
			slog.String("op", j.action),
			slog.String("endpoint", j.endpoint),
			slog.Int("attempts", attempts),
			slog.Duration("duration", time.Since(start)),
		}
		if err == nil {
			logger.Debug(j.ctx, "tg.sender", "send.ok", append(attrs, slog.String("status", "ok"))...)
			continue
		}
		d.failed.Add(1)
		logger.Error(j.ctx, "tg.sender", "send.fail", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", redactToken(err)),
			slog.String("cause", errorKind(err)),
		)...)
	}
}

// attempt runs j until it succeeds, fails permanently, exhausts its retries
// or outlives MaxDuration.
func (d *Dispatcher) attempt(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	var err error
	for n := 1; ; n++ {
		if err = j.run(); err == nil {
			return n, nil
		}
		if n > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			return n, err
		}
		delay := netutil.RetryAfter(err)
		if delay <= 0 {
			delay = d.opts.RetryBackoff * time.Duration(n)
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			slog.String("status", "retry"),
			slog.Int("attempts", n),
			slog.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// errorKind buckets a send failure for log aggregation.
func errorKind(err error) string {
	var apiErr *tele.Error
	var flood tele.FloodError
	var opErr *net.OpError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		return "http_4xx"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	}
	return "unknown"
}

// redactToken strips a bot token from URLs echoed in transport errors.
func redactToken(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
