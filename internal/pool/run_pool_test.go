package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPool_ExecutesDispatchedTasks(t *testing.T) {
	p := NewRunPool(Config{MaxConcurrent: 4, QueueSize: 16})
	defer p.Close()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := p.Dispatch(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			done.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	wg.Wait()

	if done.Load() != 10 {
		t.Errorf("executed %d tasks, want 10", done.Load())
	}
	if got := p.Stats().Completed; got != 10 {
		t.Errorf("Stats().Completed = %d, want 10", got)
	}
}

func TestRunPool_BoundsConcurrency(t *testing.T) {
	p := NewRunPool(Config{MaxConcurrent: 2, QueueSize: 32})
	defer p.Close()

	var peak, current atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := p.Dispatch(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			c := current.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRunPool_RejectsWhenFull(t *testing.T) {
	p := NewRunPool(Config{MaxConcurrent: 1, QueueSize: 1})
	defer p.Close()

	block := make(chan struct{})
	defer close(block)

	// Occupy the single worker, then fill the queue.
	_ = p.Dispatch(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	_ = p.Dispatch(context.Background(), func(ctx context.Context) error { return nil })

	sawReject := false
	for i := 0; i < 10; i++ {
		if err := p.Dispatch(context.Background(), func(ctx context.Context) error { return nil }); errors.Is(err, ErrPoolFull) {
			sawReject = true
			break
		}
	}
	if !sawReject {
		t.Error("saturated pool should reject dispatches")
	}
}

func TestRunPool_CloseRejectsAndDrains(t *testing.T) {
	p := NewRunPool(Config{MaxConcurrent: 2, QueueSize: 8})

	var done atomic.Int32
	for i := 0; i < 4; i++ {
		_ = p.Dispatch(context.Background(), func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}
	p.Close()

	if done.Load() != 4 {
		t.Errorf("Close should drain queued tasks, ran %d of 4", done.Load())
	}
	if err := p.Dispatch(context.Background(), func(ctx context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Dispatch after Close = %v, want ErrPoolClosed", err)
	}
}

func TestRunPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewRunPool(Config{MaxConcurrent: 1, QueueSize: 8})
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	_ = p.Dispatch(context.Background(), func(ctx context.Context) error {
		defer wg.Done()
		panic("run blew up")
	})
	wg.Wait()

	done := make(chan struct{})
	_ = p.Dispatch(context.Background(), func(ctx context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped executing after a panicking task")
	}
	if p.Stats().Failed == 0 {
		t.Error("panicking task should count as failed")
	}
}
