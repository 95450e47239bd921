package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_FetchCollapsesConcurrentCalls(t *testing.T) {
	cache := NewCache()
	release := make(chan struct{})
	var calls int32

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Fetch(context.Background(), "k", fetch)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	// let every goroutine join the flight before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch ran %d times, want 1", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("result %d = %v, want 42", i, v)
		}
	}

	// fresh values are served without fetching
	if _, err := cache.Fetch(context.Background(), "k", fetch); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch ran %d times after cache hit, want 1", got)
	}
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	cache := NewCache()
	cache.Set("k", 1)
	cache.Invalidate("k")

	v, err := cache.Fetch(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		return 2, nil
	})
	if err != nil || v != 2 {
		t.Errorf("Fetch() = %v, %v, want 2", v, err)
	}
}

func increment(_ string, old interface{}) interface{} {
	return old.(int) + 1
}

func TestCache_Optimistic(t *testing.T) {
	callErr := errors.New("server said no")

	tests := []struct {
		name      string
		err       error
		wantAfter int
	}{
		{"success keeps patch", nil, 2},
		{"failure restores snapshot", callErr, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewCache()
			cache.Set("k", 1)

			var during interface{}
			err := cache.Optimistic(context.Background(), []string{"k", "missing"}, increment, func(ctx context.Context) error {
				during, _ = cache.Get("k")
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Optimistic() error = %v, want %v", err, tt.err)
			}
			if during != 2 {
				t.Errorf("value during call = %v, want 2", during)
			}
			if v, _ := cache.Get("k"); v != tt.wantAfter {
				t.Errorf("value after call = %v, want %d", v, tt.wantAfter)
			}
			if _, ok := cache.Get("missing"); ok {
				t.Error("absent key gained a value")
			}

			refetched := false
			cache.Fetch(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
				refetched = true
				return 10, nil
			})
			if !refetched {
				t.Error("expected keys to be invalidated after the call")
			}
		})
	}
}

func TestCache_OptimisticCancelsInflightFetch(t *testing.T) {
	cache := NewCache()
	cache.Set("k", 1)
	cache.Invalidate("k")

	started := make(chan struct{})
	cancelled := make(chan struct{})
	type result struct {
		v   interface{}
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := cache.Fetch(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return 99, nil
		})
		done <- result{v, err}
	}()
	<-started

	err := cache.Optimistic(context.Background(), []string{"k"}, increment, func(ctx context.Context) error {
		select {
		case <-cancelled:
		case <-time.After(2 * time.Second):
			t.Error("in-flight fetch was not cancelled")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Optimistic() error = %v", err)
	}

	res := <-done
	if res.err != nil || res.v != 2 {
		t.Errorf("superseded Fetch() = %v, %v, want the patched 2", res.v, res.err)
	}
	if v, _ := cache.Get("k"); v != 2 {
		t.Errorf("cached = %v, want 2; stale fetch result must not win", v)
	}
}

func TestCache_FetchHonoursCallerContext(t *testing.T) {
	cache := NewCache()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Fetch(ctx, "k", func(context.Context) (interface{}, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}
