package wasmjit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/roach88/jitexpr/internal/ir"
	"github.com/roach88/jitexpr/internal/jit"
)

// Name identifies this backend.
const Name = "wasm"

// Engine selects how wazero executes modules.
type Engine string

const (
	// EngineAuto compiles to native code where wazero supports it and
	// interprets elsewhere.
	EngineAuto Engine = "auto"

	// EngineInterpreter always interprets.
	EngineInterpreter Engine = "interpreter"
)

// ParseEngine validates an engine name.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineAuto, EngineInterpreter:
		return Engine(s), nil
	case "":
		return EngineAuto, nil
	}
	return "", fmt.Errorf("unknown engine %q (want %q or %q)", s, EngineAuto, EngineInterpreter)
}

// Option configures a Backend.
type Option func(*Backend)

// WithEngine selects the execution engine.
func WithEngine(e Engine) Option {
	return func(b *Backend) {
		b.engine = e
	}
}

// WithCacheDir persists compiled modules under dir across processes.
func WithCacheDir(dir string) Option {
	return func(b *Backend) {
		b.cacheDir = dir
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// Backend is the wazero-backed jit.Backend. It holds configuration only;
// every Acquire creates an independent runtime.
type Backend struct {
	engine   Engine
	cacheDir string
	logger   *slog.Logger
	modules  atomic.Uint64
}

var _ jit.Backend = (*Backend)(nil)

// New creates a Backend.
func New(opts ...Option) *Backend {
	b := &Backend{engine: EngineAuto, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements jit.Backend.
func (b *Backend) Name() string {
	return Name
}

// Acquire implements jit.Backend.
func (b *Backend) Acquire(ctx context.Context) (jit.Context, error) {
	var cfg wazero.RuntimeConfig
	switch b.engine {
	case EngineInterpreter:
		cfg = wazero.NewRuntimeConfigInterpreter()
	default:
		cfg = wazero.NewRuntimeConfig()
	}
	cfg = cfg.WithCloseOnContextDone(true)

	var cache wazero.CompilationCache
	if b.cacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(b.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("open compilation cache %s: %w", b.cacheDir, err)
		}
		cache = c
		cfg = cfg.WithCompilationCache(cache)
	}

	b.logger.Debug("acquiring wasm runtime", "engine", b.engine, "cache_dir", b.cacheDir)
	return &compileContext{
		backend: b,
		runtime: wazero.NewRuntimeWithConfig(ctx, cfg),
		cache:   cache,
		ir:      ir.NewContext(),
	}, nil
}

type compileContext struct {
	backend  *Backend
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	ir       *ir.Context
	released bool
}

func (c *compileContext) IR() *ir.Context {
	return c.ir
}

func (c *compileContext) Layout() ir.DataLayout {
	return ir.Wasm32
}

// Compile lowers the IR built so far and instantiates it as a new module.
// It may be called more than once; each call yields an independent Result.
func (c *compileContext) Compile(ctx context.Context) (jit.Result, error) {
	if c.released {
		return nil, jit.CompilationFailed(Name, errors.New("context already released"))
	}
	bin, err := Lower(c.ir)
	if err != nil {
		return nil, jit.CompilationFailed(Name, err)
	}

	compiled, err := c.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, jit.CompilationFailed(Name, err)
	}

	name := fmt.Sprintf("jitexpr-%d", c.backend.modules.Add(1))
	mod, err := c.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, jit.CompilationFailed(Name, err)
	}

	c.backend.logger.Debug("compiled module",
		"module", name,
		"bytes", len(bin),
		"functions", len(c.ir.Functions()),
	)
	return &result{module: mod, compiled: compiled}, nil
}

// Release closes the runtime and every module instantiated in it.
// Calls after the first are no-ops.
func (c *compileContext) Release(ctx context.Context) error {
	if c.released {
		return nil
	}
	c.released = true

	err := c.runtime.Close(ctx)
	if c.cache != nil {
		err = errors.Join(err, c.cache.Close(ctx))
	}
	if err != nil {
		return fmt.Errorf("release wasm runtime: %w", err)
	}
	return nil
}

type result struct {
	module   api.Module
	compiled wazero.CompiledModule
	released bool
}

func (r *result) Lookup(name string) (jit.Function, error) {
	fn := r.module.ExportedFunction(name)
	if fn == nil {
		return nil, jit.SymbolNotFound(Name, name)
	}
	return fn, nil
}

func (r *result) Memory() jit.Memory {
	return r.module.Memory()
}

// Release closes the module instance. Calls after the first are no-ops.
func (r *result) Release(ctx context.Context) error {
	if r.released {
		return nil
	}
	r.released = true
	return errors.Join(r.module.Close(ctx), r.compiled.Close(ctx))
}
