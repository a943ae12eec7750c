package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEachCoversRange(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		wp := New(workers)
		seen := make([]int32, 1000)
		err := wp.ForEach(context.Background(), len(seen), func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
			return nil
		})
		wp.Close()
		if err != nil {
			t.Fatalf("workers=%d: ForEach error: %v", workers, err)
		}
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, n)
			}
		}
	}
}

func TestForEachReturnsError(t *testing.T) {
	wp := New(4)
	defer wp.Close()

	boom := errors.New("boom")
	err := wp.ForEach(context.Background(), 100, func(lo, hi int) error {
		if lo == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("ForEach error = %v, want %v", err, boom)
	}
}

func TestForEachEmpty(t *testing.T) {
	wp := New(2)
	defer wp.Close()
	called := false
	if err := wp.ForEach(context.Background(), 0, func(int, int) error {
		called = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("fn called for empty range")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	wp := New(1)
	wp.Close()
	wp.Close()

	for i := 0; i < 100; i++ {
		ran := false
		result := make(chan error, 1)
		wp.Submit(Task{Execute: func() error { ran = true; return nil }}, result)
		select {
		case err := <-result:
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("Submit after Close = %v, want ErrClosed", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Submit after Close never answered")
		}
		if ran {
			t.Fatal("task ran on a closed pool")
		}
	}
}

func TestForEachAfterClose(t *testing.T) {
	for _, workers := range []int{1, 4} {
		wp := New(workers)
		wp.Close()

		done := make(chan error, 1)
		go func() {
			done <- wp.ForEach(context.Background(), 100, func(int, int) error { return nil })
		}()
		select {
		case err := <-done:
			if !errors.Is(err, ErrClosed) {
				t.Errorf("workers=%d: ForEach after Close = %v, want ErrClosed", workers, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("workers=%d: ForEach after Close hung", workers)
		}
	}
}

func TestStatsCountsTasks(t *testing.T) {
	wp := New(2)
	defer wp.Close()

	_ = wp.ForEach(context.Background(), 64, func(lo, hi int) error { return nil })
	if _, total := wp.Stats(); total == 0 {
		t.Error("total jobs not counted")
	}
}
