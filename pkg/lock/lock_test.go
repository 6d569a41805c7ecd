package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedSerializesSameDevice(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	release, err := k.Acquire(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	second := make(chan struct{})
	go func() {
		r, err := k.Acquire(ctx, "10.0.0.1")
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		defer r()
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second acquire succeeded while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
}

func TestKeyedIndependentDevices(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	r1, err := k.Acquire(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer r1()

	// A different device must not block.
	done := make(chan struct{})
	go func() {
		r2, err := k.Acquire(ctx, "10.0.0.2")
		if err == nil {
			r2()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent device blocked")
	}
}

func TestKeyedAcquireHonorsContext(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "10.0.0.1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestKeyedReleaseIsIdempotent(t *testing.T) {
	k := NewKeyed()
	release, err := k.Acquire(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release() // must not panic or corrupt the semaphore

	r2, err := k.Acquire(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("reacquire after double release: %v", err)
	}
	r2()
}

func TestKeyedUnderContention(t *testing.T) {
	k := NewKeyed()
	var held, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "10.0.0.1")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			held++
			if held > max {
				max = held
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			held--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("lock admitted %d holders at once", max)
	}
}
