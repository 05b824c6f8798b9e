// Package keylock serializes work per key inside one process.
package keylock

import (
	"context"
	"sort"
	"sync"
	"time"

	"billiard-hall/internal/pkg/errs"

	"golang.org/x/sync/semaphore"
)

type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns a Locker whose Acquire gives up after timeout. A zero timeout waits
// for as long as the caller's context allows.
func New(timeout time.Duration) *Locker {
	return &Locker{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire blocks until key is free. On timeout it returns errs.ErrContention.
func (l *Locker) Acquire(ctx context.Context, key string) (release func(), err error) {
	e := l.ref(key)

	acquireCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(acquireCtx, 1); err != nil {
		l.unref(key)
		if ctx.Err() != nil {
			return nil, errs.Wrap(ctx.Err(), "acquire lock "+key)
		}
		return nil, errs.Wrapf(errs.ErrContention, "lock %q not acquired within %s", key, l.timeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key)
		})
	}, nil
}

// AcquireAll takes several keys in a stable order so two callers never deadlock.
func (l *Locker) AcquireAll(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	var prev string
	for i, key := range sorted {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// Held reports the number of keys currently tracked.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
