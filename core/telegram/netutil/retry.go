// Package netutil classifies Bot API transport failures.
package netutil

import (
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether a failed Bot API call is safe to repeat.
// Only failures where Telegram never accepted the request qualify: dial and
// DNS errors, and flood-control rejections. Read timeouts do not, because
// the message may already have been delivered.
func ShouldRetry(err error) bool {
	var (
		flood tele.FloodError
		dns   *net.DNSError
		op    *net.OpError
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &flood), errors.As(err, &dns):
		return true
	case errors.As(err, &op):
		return op.Op == "dial"
	}
	return false
}

// RetryAfter returns the wait Telegram asked for in a flood error, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0
	}
	return time.Duration(max(flood.RetryAfter, 0)) * time.Second
}
