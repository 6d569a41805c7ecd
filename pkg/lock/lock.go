// Package lock serializes operations against a single device. One engine
// process gets by with in-process mutexes; a fleet shared between several
// engine instances moves to the redis-backed locker without touching any
// caller.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one device at a time. Acquire blocks
// until the lock is held or ctx expires; the returned release function
// must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, device string) (release func(), err error)
}

// Keyed is the in-process locker: one mutex per device key, created on
// first use and never discarded. The map stays small, one entry per
// managed device.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*semaphore
}

// semaphore is a channel-based mutex so Acquire can respect ctx.
type semaphore struct {
	ch chan struct{}
}

// NewKeyed returns an empty in-process locker.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*semaphore)}
}

func (k *Keyed) sem(device string) *semaphore {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.locks[device]
	if !ok {
		s = &semaphore{ch: make(chan struct{}, 1)}
		k.locks[device] = s
	}
	return s
}

// Acquire blocks until the device lock is free or ctx is done.
func (k *Keyed) Acquire(ctx context.Context, device string) (func(), error) {
	s := k.sem(device)
	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
