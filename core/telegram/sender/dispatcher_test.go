package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func TestDispatcherPreservesPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 100})

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 30; i++ {
		key := int64(i % 5)
		seq := i
		if err := d.Enqueue(context.Background(), key, "send.text", "sendMessage", func() error {
			mu.Lock()
			got[key] = append(got[key], seq)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	d.Close()

	for key, seqs := range got {
		if len(seqs) != 6 {
			t.Fatalf("key %d ran %d jobs, want 6", key, len(seqs))
		}
		for i := 1; i < len(seqs); i++ {
			if seqs[i] < seqs[i-1] {
				t.Fatalf("key %d out of order: %v", key, seqs)
			}
		}
	}
}

func TestDispatcherRetriesOnlyUndeliveredFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var dialCalls, readCalls int
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	readErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}

	_ = d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		dialCalls++
		if dialCalls < 3 {
			return dialErr
		}
		return nil
	})
	_ = d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error {
		readCalls++
		return readErr
	})
	d.Close()

	if dialCalls != 3 {
		t.Fatalf("dial failures should be retried, calls = %d", dialCalls)
	}
	if readCalls != 1 {
		t.Fatalf("read failures must not be retried, calls = %d", readCalls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := d.Enqueue(context.Background(), 1, "x", "", nil); err == nil {
		t.Fatal("nil run must be rejected")
	}
}

func TestErrorKindAndRedaction(t *testing.T) {
	if got := errorKind(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("deadline = %q", got)
	}
	if got := errorKind(&net.OpError{Op: "dial", Err: errors.New("refused")}); got != "dial" {
		t.Fatalf("dial = %q", got)
	}
	if got := errorKind(errors.New("odd")); got != "unknown" {
		t.Fatalf("plain = %q", got)
	}
	msg := redactToken(errors.New(`Post "https://api.telegram.org/bot123:ABC_def/sendMessage": EOF`))
	if msg != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("token not redacted: %s", msg)
	}
}
