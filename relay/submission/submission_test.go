package submission

import (
	"testing"
	"time"

	"github.com/m3rciful/proxyrelay/relay/validate"
)

func TestNew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	a := New(42, now)
	b := New(42, now)
	if a.Step != AwaitingType || a.UserID != 42 || !a.StartedAt.Equal(now) {
		t.Fatalf("unexpected submission: %+v", a)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids must be unique: %q %q", a.ID, b.ID)
	}
}

func TestReady(t *testing.T) {
	s := Submission{Kind: validate.V2Ray, DisplayName: "My Channel", Operator: "irancell", Payload: "vless://abc123"}
	if !s.Ready() {
		t.Fatal("complete submission should be ready")
	}
	bad := s
	bad.Payload = "not-a-link"
	if bad.Ready() {
		t.Fatal("invalid payload must not be ready")
	}
	bad = s
	bad.Operator = "unknown"
	if bad.Ready() {
		t.Fatal("unknown operator must not be ready")
	}
	bad = s
	bad.DisplayName = ""
	if bad.Ready() {
		t.Fatal("missing name must not be ready")
	}
}

func TestOperators(t *testing.T) {
	ops := Operators()
	wantKeys := []string{"irancell", "mci", "rightel", "samantel", "homenet"}
	if len(ops) != len(wantKeys) {
		t.Fatalf("operators = %d", len(ops))
	}
	for i, k := range wantKeys {
		if ops[i].Key != k {
			t.Fatalf("operator %d = %q, want %q", i, ops[i].Key, k)
		}
	}
	ops[0].Label = "changed"
	if OperatorLabel("irancell") != "ایرانسل" {
		t.Fatal("table must not be mutable through Operators()")
	}
	if OperatorLabel("starlink") != "starlink" {
		t.Fatal("unknown keys pass through")
	}
	if IsOperator("starlink") || !IsOperator("homenet") {
		t.Fatal("IsOperator mismatch")
	}
}

func TestStore(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	st := NewStore()
	st.SetClock(func() time.Time { return now })

	st.Put(New(1, now))
	st.Put(New(2, now))
	if st.Len() != 2 {
		t.Fatalf("len = %d", st.Len())
	}
	sub, ok := st.Get(1)
	if !ok || sub.UserID != 1 {
		t.Fatalf("get = %+v, %v", sub, ok)
	}

	replaced := New(1, now)
	st.Put(replaced)
	if got, _ := st.Get(1); got.ID != replaced.ID {
		t.Fatal("put must replace wholesale")
	}

	now = now.Add(2 * time.Hour)
	st.Put(New(3, now))
	if n := st.Sweep(time.Hour); n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}
	if !st.Delete(3) || st.Len() != 0 {
		t.Fatal("delete should empty the store")
	}
}

func TestStoreTake(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	st := NewStore()
	sub := New(1, now)
	st.Put(sub)

	if st.Take(1, "other-id") {
		t.Fatal("take must not remove a submission with another id")
	}
	if !st.Take(1, sub.ID) {
		t.Fatal("take should claim the matching submission")
	}
	if st.Take(1, sub.ID) || st.Len() != 0 {
		t.Fatal("second take must fail")
	}
}
