package testutil

import (
	"context"
	"sync"

	"github.com/roach88/jitexpr/internal/ir"
	"github.com/roach88/jitexpr/internal/jit"
)

// Counts is a snapshot of backend resource events.
type Counts struct {
	Acquired        int
	ContextReleases int
	Compiled        int
	ResultReleases  int
}

// CountingBackend wraps a jit.Backend and counts acquisitions, compilations
// and releases, so tests can check that every exit path releases exactly
// once. It can also inject failures.
//
// Thread-safety: counters are guarded by a mutex.
type CountingBackend struct {
	Inner jit.Backend

	// FailCompile, when set, is returned from Compile as a compilation failure.
	FailCompile error

	// HideSymbols makes every Lookup miss.
	HideSymbols bool

	mu     sync.Mutex
	counts Counts
}

var _ jit.Backend = (*CountingBackend)(nil)

// NewCountingBackend wraps inner.
func NewCountingBackend(inner jit.Backend) *CountingBackend {
	return &CountingBackend{Inner: inner}
}

// Counts returns the current counters.
func (b *CountingBackend) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Balanced reports whether every acquired context and compiled result was
// released exactly once.
func (b *CountingBackend) Balanced() bool {
	c := b.Counts()
	return c.Acquired == c.ContextReleases && c.Compiled == c.ResultReleases
}

func (b *CountingBackend) bump(f func(*Counts)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(&b.counts)
}

// Name implements jit.Backend.
func (b *CountingBackend) Name() string {
	return b.Inner.Name()
}

// Acquire implements jit.Backend.
func (b *CountingBackend) Acquire(ctx context.Context) (jit.Context, error) {
	inner, err := b.Inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	b.bump(func(c *Counts) { c.Acquired++ })
	return &countingContext{backend: b, inner: inner}, nil
}

type countingContext struct {
	backend *CountingBackend
	inner   jit.Context
}

func (c *countingContext) IR() *ir.Context {
	return c.inner.IR()
}

func (c *countingContext) Layout() ir.DataLayout {
	return c.inner.Layout()
}

func (c *countingContext) Compile(ctx context.Context) (jit.Result, error) {
	if err := c.backend.FailCompile; err != nil {
		return nil, jit.CompilationFailed(c.backend.Name(), err)
	}
	inner, err := c.inner.Compile(ctx)
	if err != nil {
		return nil, err
	}
	c.backend.bump(func(c *Counts) { c.Compiled++ })
	return &countingResult{backend: c.backend, inner: inner}, nil
}

func (c *countingContext) Release(ctx context.Context) error {
	c.backend.bump(func(c *Counts) { c.ContextReleases++ })
	return c.inner.Release(ctx)
}

type countingResult struct {
	backend *CountingBackend
	inner   jit.Result
}

func (r *countingResult) Lookup(name string) (jit.Function, error) {
	if r.backend.HideSymbols {
		return nil, jit.SymbolNotFound(r.backend.Name(), name)
	}
	return r.inner.Lookup(name)
}

func (r *countingResult) Memory() jit.Memory {
	return r.inner.Memory()
}

func (r *countingResult) Release(ctx context.Context) error {
	r.backend.bump(func(c *Counts) { c.ResultReleases++ })
	return r.inner.Release(ctx)
}
