// Package host embeds the Starlark interpreter that supplies objective
// functions to the optimizer.
//
// A Runtime owns an interpreter lock. Starlark code only runs while the lock
// is held; native code that does not touch interpreter state (the optimizer
// kernel) releases it with AllowThreads and re-enters with WithLock.
package host

import (
	"fmt"
	"log/slog"
	"sync"

	"go.starlark.net/starlark"
)

const (
	runtimeKey = "mcsbridge.runtime"
	heldKey    = "mcsbridge.lockHeld"
)

// Runtime is a Starlark environment shared by any number of threads.
type Runtime struct {
	mu          sync.Mutex
	predeclared starlark.StringDict
}

// NewRuntime creates a runtime whose scripts see the given predeclared names.
func NewRuntime(predeclared starlark.StringDict) *Runtime {
	if predeclared == nil {
		predeclared = starlark.StringDict{}
	}
	return &Runtime{predeclared: predeclared}
}

// NewThread creates a thread of control bound to this runtime. Starlark
// print output goes to the default slog logger.
func (r *Runtime) NewThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			slog.Info(msg, "thread", thread.Name)
		},
	}
	thread.SetLocal(runtimeKey, r)
	return thread
}

// ExecFile executes a Starlark module while holding the interpreter lock and
// returns its globals. src may be nil (read filename), a string or []byte.
func (r *Runtime) ExecFile(thread *starlark.Thread, filename string, src interface{}) (starlark.StringDict, error) {
	var (
		globals starlark.StringDict
		err     error
	)
	WithLock(thread, func() {
		globals, err = starlark.ExecFile(thread, filename, src, r.predeclared)
	})
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("failed to execute %s: %s", filename, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("failed to execute %s: %w", filename, err)
	}
	return globals, nil
}

// runtimeOf returns the runtime a thread was created by, or nil.
func runtimeOf(thread *starlark.Thread) *Runtime {
	if thread == nil {
		return nil
	}
	r, _ := thread.Local(runtimeKey).(*Runtime)
	return r
}

func lockHeld(thread *starlark.Thread) bool {
	held, _ := thread.Local(heldKey).(bool)
	return held
}

// WithLock runs fn with the interpreter lock held by thread. It is a no-op
// wrapper when the thread already holds the lock or has no runtime.
func WithLock(thread *starlark.Thread, fn func()) {
	r := runtimeOf(thread)
	if r == nil || lockHeld(thread) {
		fn()
		return
	}

	r.mu.Lock()
	thread.SetLocal(heldKey, true)
	defer func() {
		thread.SetLocal(heldKey, false)
		r.mu.Unlock()
	}()
	fn()
}

// AllowThreads runs fn with the interpreter lock released, re-acquiring it
// before returning. Threads that do not hold the lock just run fn.
func AllowThreads(thread *starlark.Thread, fn func()) {
	r := runtimeOf(thread)
	if r == nil || !lockHeld(thread) {
		fn()
		return
	}

	thread.SetLocal(heldKey, false)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		thread.SetLocal(heldKey, true)
	}()
	fn()
}

// Holds reports whether thread currently holds its runtime's interpreter lock.
func Holds(thread *starlark.Thread) bool {
	return runtimeOf(thread) != nil && lockHeld(thread)
}
