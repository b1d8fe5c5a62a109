package host

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestExecFileReturnsGlobals(t *testing.T) {
	rt := NewRuntime(nil)
	thread := rt.NewThread("test")

	globals, err := rt.ExecFile(thread, "obj.star", "def f(x):\n    return x[0] * 2\n")
	require.NoError(t, err)

	fn, err := Lookup(globals, "f")
	require.NoError(t, err)

	v, err := starlark.Call(thread, fn, starlark.Tuple{NewList([]float64{1.5})}, nil)
	require.NoError(t, err)
	f, ok := starlark.AsFloat(v)
	require.True(t, ok)
	assert.Equal(t, 3.0, f)
}

func TestExecFileReportsScriptErrors(t *testing.T) {
	rt := NewRuntime(nil)
	thread := rt.NewThread("test")

	_, err := rt.ExecFile(thread, "bad.star", "fail('broken')\n")
	assert.ErrorContains(t, err, "broken")
	assert.False(t, Holds(thread))
}

func TestLookup(t *testing.T) {
	globals := starlark.StringDict{"n": starlark.MakeInt(3)}

	_, err := Lookup(globals, "missing")
	assert.ErrorContains(t, err, "does not define")

	_, err = Lookup(globals, "n")
	assert.ErrorContains(t, err, "not a function")
}

func TestLockDiscipline(t *testing.T) {
	var held, released bool
	rt := NewRuntime(starlark.StringDict{
		"probe": starlark.NewBuiltin("probe", func(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			held = Holds(thread)
			AllowThreads(thread, func() {
				released = !Holds(thread)
				WithLock(thread, func() {
					assert.True(t, Holds(thread))
				})
			})
			assert.True(t, Holds(thread))
			return starlark.None, nil
		}),
	})
	thread := rt.NewThread("test")

	_, err := rt.ExecFile(thread, "probe.star", "probe()\n")
	require.NoError(t, err)

	assert.True(t, held)
	assert.True(t, released)
	assert.False(t, Holds(thread))
}

func TestAllowThreadsLetsOtherThreadsRun(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})

	rt := NewRuntime(starlark.StringDict{
		"wait": starlark.NewBuiltin("wait", func(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			AllowThreads(thread, func() {
				close(entered)
				<-proceed
			})
			return starlark.None, nil
		}),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := rt.ExecFile(rt.NewThread("a"), "a.star", "wait()\n")
		assert.NoError(t, err)
	}()

	<-entered
	done := make(chan struct{})
	go func() {
		WithLock(rt.NewThread("b"), func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock was not released while the first thread ran native code")
	}
	close(proceed)
	wg.Wait()
}

func TestWithLockWithoutRuntime(t *testing.T) {
	ran := false
	WithLock(&starlark.Thread{}, func() { ran = true })
	assert.True(t, ran)

	ran = false
	AllowThreads(nil, func() { ran = true })
	assert.True(t, ran)
}

func TestFloats(t *testing.T) {
	got, err := Floats("u", starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.Float(2.5)}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, got)

	got, err = Floats("u", starlark.Tuple{starlark.Float(-1)})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, got)

	_, err = Floats("u", starlark.NewList([]starlark.Value{starlark.String("x")}))
	assert.ErrorContains(t, err, "u[0]")

	_, err = Floats("u", starlark.MakeInt(4))
	assert.ErrorContains(t, err, "want a sequence")
}

func TestRows(t *testing.T) {
	v := starlark.NewList([]starlark.Value{
		NewList([]float64{1, 0}),
		NewList([]float64{0}),
	})
	rows, err := Rows("hess", v)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0}}, rows)

	_, err = Rows("hess", starlark.NewList([]starlark.Value{starlark.MakeInt(1)}))
	assert.ErrorContains(t, err, "hess[0]")
}
