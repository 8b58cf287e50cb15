package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	user   *tele.User
	values map[string]any
	sent   []any
}

func newFakeContext(userID int64) *fakeContext {
	fc := &fakeContext{values: map[string]any{}}
	if userID != 0 {
		fc.user = &tele.User{ID: userID}
	}
	return fc
}

func (f *fakeContext) Sender() *tele.User    { return f.user }
func (f *fakeContext) Get(key string) any    { return f.values[key] }
func (f *fakeContext) Set(key string, v any) { f.values[key] = v }
func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestAdminOnlyMiddleware(t *testing.T) {
	admins := map[int64]bool{42: true}
	var called int
	next := func(tele.Context) error { called++; return nil }
	h := AdminOnlyMiddleware(AdminOptions{IsAdmin: func(id int64) bool { return admins[id] }})(next)

	if err := h(newFakeContext(42)); err != nil || called != 1 {
		t.Fatalf("admin should pass: err=%v called=%d", err, called)
	}
	if err := h(newFakeContext(7)); err != nil || called != 1 {
		t.Fatalf("non-admin should be dropped silently: err=%v called=%d", err, called)
	}
	if err := h(newFakeContext(0)); err != nil || called != 1 {
		t.Fatalf("anonymous sender should be dropped: err=%v called=%d", err, called)
	}

	var rejected bool
	strict := AdminOnlyMiddleware(AdminOptions{OnReject: func(tele.Context) error { rejected = true; return nil }})(next)
	_ = strict(newFakeContext(42))
	if !rejected || called != 1 {
		t.Fatalf("nil IsAdmin must deny everyone: rejected=%v called=%d", rejected, called)
	}
}

func TestLastSeenAllow(t *testing.T) {
	l := &lastSeen{byUser: map[int64]time.Time{}}
	base := time.Unix(1_700_000_000, 0)
	interval := time.Second

	if !l.allow(1, base, interval) {
		t.Fatal("first hit must pass")
	}
	if l.allow(1, base.Add(500*time.Millisecond), interval) {
		t.Fatal("hit within interval must be limited")
	}
	if !l.allow(2, base.Add(500*time.Millisecond), interval) {
		t.Fatal("other users are independent")
	}
	if !l.allow(1, base.Add(2*time.Second), interval) {
		t.Fatal("hit after interval must pass")
	}
	l.allow(3, base.Add(10*time.Second), interval)
	if _, ok := l.byUser[2]; ok {
		t.Fatal("stale entries should be pruned")
	}
}

func TestCountReplies(t *testing.T) {
	fc := newFakeContext(1)
	h := CountReplies(func(c tele.Context) error {
		if err := c.Send("one"); err != nil {
			return err
		}
		return c.Send("two", &tele.ReplyMarkup{})
	})
	if err := h(fc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := Replies(fc)
	if msgs != 2 || !kb {
		t.Fatalf("counters = (%d, %v), want (2, true)", msgs, kb)
	}
}

func TestRecoverReturnsError(t *testing.T) {
	h := Recover(func(tele.Context) error { panic("boom") })
	if err := h(newFakeContext(1)); err == nil {
		t.Fatal("panic should surface as an error")
	}
}

func TestReceiptsFirst(t *testing.T) {
	r := &receipts{ttl: time.Second, seen: map[int]time.Time{}}
	now := time.Unix(1_700_000_000, 0)
	if !r.first(5, now) {
		t.Fatal("first sighting must report true")
	}
	if r.first(5, now.Add(100*time.Millisecond)) {
		t.Fatal("repeat within ttl must report false")
	}
	if !r.first(5, now.Add(2*time.Second)) {
		t.Fatal("entry should expire after ttl")
	}
}
