package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", dial, true},
		{"wrapped dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org"}, true},
		{"read", read, false},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), false},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
		{"api", &tele.Error{Code: 400, Description: "Bad Request: chat not found"}, false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	if d := RetryAfter(tele.FloodError{RetryAfter: 3}); d != 3*time.Second {
		t.Fatalf("retry after = %v", d)
	}
	if d := RetryAfter(errors.New("boom")); d != 0 {
		t.Fatalf("retry after = %v, want 0", d)
	}
}
