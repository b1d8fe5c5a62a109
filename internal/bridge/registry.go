package bridge

import (
	"errors"
	"math"

	"go.starlark.net/starlark"
)

const slotKey = "mcsbridge.objective"

// slot is the single registration a thread may hold while an optimization
// runs on it.
type slot struct {
	objective   starlark.Callable
	observer    Observer
	evaluations int
	infeasible  int
}

func (s *slot) record(point []float64, value float64) {
	s.evaluations++
	if math.IsInf(value, 1) {
		s.infeasible++
	}
	if s.observer != nil {
		s.observer(point, value)
	}
}

// register stores s in the thread's slot. An occupied slot is never
// overwritten.
func register(thread *starlark.Thread, s *slot) error {
	if thread == nil {
		return errors.New("bridge: nil thread")
	}
	if _, ok := peek(thread); ok {
		return ErrReentrant
	}
	thread.SetLocal(slotKey, s)
	return nil
}

// unregister empties the thread's slot.
func unregister(thread *starlark.Thread) {
	thread.SetLocal(slotKey, nil)
}

// peek returns the current registration without removing it.
func peek(thread *starlark.Thread) (*slot, bool) {
	if thread == nil {
		return nil, false
	}
	s, ok := thread.Local(slotKey).(*slot)
	return s, ok && s != nil
}

// acquire registers s and returns the function that clears it again. Callers
// defer the release so the slot is emptied on every exit path.
func acquire(thread *starlark.Thread, s *slot) (release func(), err error) {
	if err := register(thread, s); err != nil {
		return nil, err
	}
	return func() { unregister(thread) }, nil
}

// Registered reports whether an objective is registered on thread.
func Registered(thread *starlark.Thread) bool {
	_, ok := peek(thread)
	return ok
}
