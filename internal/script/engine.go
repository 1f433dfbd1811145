package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keymacro/internal/logging"
	"github.com/dshills/keymacro/internal/macro"
	"github.com/dshills/keymacro/internal/surface"
)

// DefaultTimeout bounds a single script run.
const DefaultTimeout = 5 * time.Second

// Module names.
const (
	MacrosModule = "macros"
	BufModule    = "buf"
)

// Engine runs Lua scripts against a macro store and a surface.
//
// gopher-lua's LState is not goroutine-safe; Engine serializes runs with a
// mutex, so a script blocks other callers until it finishes.
type Engine struct {
	mu sync.Mutex
	L  *lua.LState

	store   *macro.Store
	surface surface.Surface

	out     io.Writer
	timeout time.Duration
	logger  *logging.Logger
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput sets where print writes. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.out = w
		}
	}
}

// WithTimeout sets the time limit per run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine with the macros and buf modules installed.
// sf may be nil; buf functions and replays then fail with an error message.
func New(store *macro.Store, sf surface.Surface, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		surface: sf,
		out:     io.Discard,
		timeout: DefaultTimeout,
		logger:  logging.Null(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("script")

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.L.PreloadModule(MacrosModule, e.loadMacros)
	e.L.PreloadModule(BufModule, e.loadBuf)
	installSandbox(e.L)
	e.L.SetGlobal("print", e.L.NewFunction(e.print))

	// Also expose the modules as globals.
	for _, name := range []string{MacrosModule, BufModule} {
		e.L.SetGlobal(name, e.require(name))
	}
	return e
}

// openSafeLibraries opens the libraries scripts may use. io, os and debug
// stay closed.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// installSandbox removes the loaders that reach the filesystem or compile
// arbitrary chunks, and restricts require to preloaded and built-in modules.
func installSandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}

	allowed := map[string]bool{
		"string": true, "table": true, "math": true,
		MacrosModule: true, BufModule: true,
	}
	require := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !allowed[name] {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(require)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

func (e *Engine) require(name string) lua.LValue {
	e.L.Push(e.L.GetGlobal("require"))
	e.L.Push(lua.LString(name))
	e.L.Call(1, 1)
	mod := e.L.Get(-1)
	e.L.Pop(1)
	return mod
}

// print writes its arguments tab-separated to the engine's output.
func (e *Engine) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(e.out, strings.Join(parts, "\t"))
	return 0
}

// Run executes code. name labels the chunk in error messages.
func (e *Engine) Run(ctx context.Context, name, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	fn, err := e.L.Load(strings.NewReader(code), name)
	if err != nil {
		return &Error{Script: name, Err: err}
	}

	e.L.SetContext(runCtx)
	defer e.L.RemoveContext()

	start := time.Now()
	e.L.Push(fn)
	err = e.doWithRecovery(func() error {
		return e.L.PCall(0, lua.MultRet, nil)
	})
	e.L.SetTop(0)

	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err = ErrTimeout
		}
		e.logger.Warn("%s failed after %v: %v", name, time.Since(start), err)
		return &Error{Script: name, Err: err}
	}
	e.logger.Debug("%s finished in %v", name, time.Since(start))
	return nil
}

// RunFile reads and executes the script at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Script: path, Err: err}
	}
	return e.Run(ctx, path, string(data))
}

// doWithRecovery executes fn, converting a panic into an error.
func (e *Engine) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Global returns a global variable, for inspecting script results.
func (e *Engine) Global(name string) lua.LValue {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return lua.LNil
	}
	return e.L.GetGlobal(name)
}

// Close releases the Lua state. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.L.Close()
	e.closed = true
	return nil
}
