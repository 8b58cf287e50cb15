package telegram

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
)

// HTTPOptions tunes the Bot API HTTP client.
type HTTPOptions struct {
	// ProxyURL accepts http://, https:// and socks5:// proxies; empty uses the environment.
	ProxyURL       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// PollTimeout is added to the overall budget so long polling requests are not cut short.
	PollTimeout time.Duration
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Requests are never retried here: a Bot API call that timed out may already
// have been delivered, and resending it would duplicate channel posts.
func BuildHTTPClient(opts HTTPOptions) (*http.Client, error) {
	dialTimeout := opts.ConnectTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: defaultKeepAliveInterval}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if raw := strings.TrimSpace(opts.ProxyURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("telegram: parse proxy url: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("telegram: socks proxy: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer(d)
		default:
			return nil, fmt.Errorf("telegram: unsupported proxy scheme %q", u.Scheme)
		}
	}

	timeout := opts.ConnectTimeout + opts.ReadTimeout + opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	timeout += opts.PollTimeout

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- result{conn: conn, err: err}
		}()
		select {
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-ch:
			return r.conn, r.err
		}
	}
}
