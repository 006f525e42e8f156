package crowdsafe

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownArtifact = errors.New("artifact not registered")

type cacheEntry[T any] struct {
	period      uint64
	refreshedAt uint64
	artifact    T
	warm        bool
}

// RenderCache memoizes expensive artifacts between frames.
// An artifact is rebuilt when it has never been built, when period frames
// have passed since its last build, or when the frame counter went backwards.
type RenderCache[T any] struct {
	MU      sync.Mutex
	entries map[string]*cacheEntry[T]
}

func NewRenderCache[T any]() *RenderCache[T] {
	return &RenderCache[T]{entries: make(map[string]*cacheEntry[T])}
}

// Register sets the refresh period in frames, re-registering resets the entry
func (rc *RenderCache[T]) Register(name string, period int) {
	if period < 1 {
		period = 1
	}
	rc.MU.Lock()
	defer rc.MU.Unlock()
	rc.entries[name] = &cacheEntry[T]{period: uint64(period)}
}

// Get returns the cached artifact or builds a new one.
// The bool reports whether build ran successfully this call.
// A failed build leaves the previous artifact in place and returns it with the error.
func (rc *RenderCache[T]) Get(name string, frame uint64, build func() (T, error)) (T, bool, error) {
	rc.MU.Lock()
	defer rc.MU.Unlock()

	e, ok := rc.entries[name]
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("%s: %w", name, ErrUnknownArtifact)
	}

	if e.warm && frame >= e.refreshedAt && frame-e.refreshedAt < e.period {
		return e.artifact, false, nil
	}

	a, err := build()
	if err != nil {
		return e.artifact, false, fmt.Errorf("%s: build failed: %w", name, err)
	}
	e.artifact = a
	e.refreshedAt = frame
	e.warm = true
	return a, true, nil
}

// Invalidate forces the next Get to rebuild
func (rc *RenderCache[T]) Invalidate(name string) {
	rc.MU.Lock()
	defer rc.MU.Unlock()
	if e, ok := rc.entries[name]; ok {
		e.warm = false
	}
}

// RefreshedAt reports the frame of the last successful build
func (rc *RenderCache[T]) RefreshedAt(name string) (uint64, bool) {
	rc.MU.Lock()
	defer rc.MU.Unlock()
	e, ok := rc.entries[name]
	if !ok || !e.warm {
		return 0, false
	}
	return e.refreshedAt, true
}
