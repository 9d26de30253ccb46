package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter { return &memCounter{counts: map[string]int64{}} }

func (m *memCounter) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Decr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]--
	return m.counts[key], nil
}

func (m *memCounter) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func TestSixthUploadRefused(t *testing.T) {
	l := NewLimiter(newMemCounter(), 5)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, remaining, err := l.CheckAndReserve(ctx, 7, day)
		if err != nil {
			t.Fatalf("reserve %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("upload %d should be allowed", i+1)
		}
		if remaining != int64(4-i) {
			t.Fatalf("upload %d remaining: %d", i+1, remaining)
		}
	}

	allowed, remaining, err := l.CheckAndReserve(ctx, 7, day)
	if err != nil {
		t.Fatalf("sixth reserve: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("sixth upload: allowed=%v remaining=%d", allowed, remaining)
	}
}

func TestQuotaIsPerUserPerDay(t *testing.T) {
	l := NewLimiter(newMemCounter(), 5)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if allowed, _, _ := l.CheckAndReserve(ctx, 7, day); !allowed {
			t.Fatalf("user 7 upload %d refused", i+1)
		}
	}
	if allowed, _, _ := l.CheckAndReserve(ctx, 8, day); !allowed {
		t.Fatal("other user should have a fresh quota")
	}
	if allowed, _, _ := l.CheckAndReserve(ctx, 7, day.AddDate(0, 0, 1)); !allowed {
		t.Fatal("next day should reset the quota")
	}
}

func TestConcurrentReservationsNeverExceedLimit(t *testing.T) {
	l := NewLimiter(newMemCounter(), 5)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := l.CheckAndReserve(ctx, 9, day); allowed {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 5 {
		t.Fatalf("granted %d slots, want 5", count)
	}
}

func TestReleaseReturnsSlot(t *testing.T) {
	l := NewLimiter(newMemCounter(), 5)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CheckAndReserve(ctx, 7, day)
	}
	l.Release(ctx, 7, day)
	if allowed, remaining, _ := l.CheckAndReserve(ctx, 7, day); !allowed || remaining != 0 {
		t.Fatalf("after release: allowed=%v remaining=%d", allowed, remaining)
	}
}
