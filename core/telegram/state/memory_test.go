package state

import (
	"context"
	"sync"
	"testing"
	"time"
)

type session struct {
	step string
}

func TestMemoryGetPutDelete(t *testing.T) {
	m := NewMemory[session]()
	if _, ok := m.Get(1); ok {
		t.Fatal("empty store should miss")
	}
	m.Put(1, session{step: "name"})
	got, ok := m.Get(1)
	if !ok || got.step != "name" {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	got.step = "mutated"
	if again, _ := m.Get(1); again.step != "name" {
		t.Fatal("values must be copied out")
	}
	if !m.Delete(1) || m.Delete(1) {
		t.Fatal("delete should report existence once")
	}
	if m.Len() != 0 {
		t.Fatalf("len = %d", m.Len())
	}
}

func TestMemorySweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory[session]()
	m.SetClock(func() time.Time { return now })

	m.Put(1, session{})
	now = now.Add(time.Hour)
	m.Put(2, session{})
	now = now.Add(30 * time.Minute)

	if n := m.Sweep(0); n != 0 {
		t.Fatalf("zero max idle must keep sessions, removed %d", n)
	}
	if n := m.Sweep(time.Hour); n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if _, ok := m.Get(2); !ok {
		t.Fatal("recent session must survive")
	}
}

func TestMemoryUsersIsolated(t *testing.T) {
	m := NewMemory[session]()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.Put(id, session{step: "type"})
			m.Get(id)
		}(i)
	}
	wg.Wait()
	if m.Len() != 50 {
		t.Fatalf("len = %d, want 50", m.Len())
	}
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) Sweep(time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := &countingSweeper{}
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, sw, time.Millisecond, time.Minute)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.calls == 0 {
		t.Fatal("janitor never swept")
	}
}

func TestTakeIfSingleWinner(t *testing.T) {
	m := NewMemory[string]()
	m.Put(1, "a")

	if _, ok := m.TakeIf(1, func(v string) bool { return v == "b" }); ok {
		t.Fatal("mismatched take must fail")
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.TakeIf(1, func(v string) bool { return v == "a" }); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 || m.Len() != 0 {
		t.Fatalf("wins = %d, len = %d", wins, m.Len())
	}
}
