package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stack"
	"github.com/wippyai/luabind/stream"
)

func newHandle(t *testing.T, opts ...stack.Option) *stack.Handle {
	t.Helper()
	h := stack.New(lua.NewState(), opts...)
	t.Cleanup(h.Close)
	return h
}

// setPointer publishes p as light user data under a global name.
func setPointer(h *stack.Handle, name string, p any) {
	codec.PushPointer(h, p)
	h.State().SetGlobal(name, h.Get(-1))
	h.Pop(1)
}

func run(t *testing.T, h *stack.Handle, script string) {
	t.Helper()
	require.NoError(t, h.State().DoString(script))
}

func global(h *stack.Handle, name string) lua.LValue {
	return h.State().GetGlobal(name)
}

type counter struct {
	N     int
	Label string
}

func (c *counter) Add(delta int) int {
	c.N += delta
	return c.N
}

type point struct {
	X, Y int
}

type adder struct{ base int }

func (a adder) Call(x int) int { return a.base + x }

type closingFn struct {
	closed int
}

func (c *closingFn) Call() string { return "open" }

func (c *closingFn) Close() error {
	c.closed++
	return nil
}

func TestFreeFunction(t *testing.T) {
	h := newHandle(t)
	less := func(a int, b float64) bool { return float64(a) < b }
	require.NoError(t, NewLibrary("t").Add("less", less).Register(h))

	run(t, h, `
		a = t.less(3, 4.5)
		b = t.less(5, 4.5)
		c = t.less("x")
		n = select('#', t.less(1, 2))
	`)
	require.Equal(t, lua.LBool(less(3, 4.5)), global(h, "a"))
	require.Equal(t, lua.LBool(less(5, 4.5)), global(h, "b"))
	require.Equal(t, lua.LFalse, global(h, "c"), "mismatched arguments read as zero values")
	require.Equal(t, lua.LNumber(1), global(h, "n"))
}

func TestFastPathMatchesReflection(t *testing.T) {
	h := newHandle(t)
	add := func(a, b int) int { return a + b }
	require.NotNil(t, fastPath(add))

	require.NoError(t, NewLibrary("t").
		Add("add", add).
		Add("concat", func(a, b string) string { return a + b }).
		Add("none", func() {}).
		Register(h))

	run(t, h, `
		a = t.add(2, 40)
		b = t.add("2", 1)
		c = t.concat("ab", "cd")
		n = select('#', t.none())
	`)
	require.Equal(t, lua.LNumber(42), global(h, "a"))
	require.Equal(t, lua.LNumber(1), global(h, "b"))
	require.Equal(t, lua.LString("abcd"), global(h, "c"))
	require.Equal(t, lua.LNumber(0), global(h, "n"))
}

func TestStructArgument(t *testing.T) {
	h := newHandle(t)
	require.NoError(t, NewLibrary("t").
		Add("sum", func(p point) int { return p.X + p.Y }).
		Add("origin", func() point { return point{} }).
		Register(h))

	run(t, h, `
		s = t.sum({X = 3, Y = 4})
		o = t.origin()
		ox = o.X
	`)
	require.Equal(t, lua.LNumber(7), global(h, "s"))
	require.Equal(t, lua.LNumber(0), global(h, "ox"))
}

func TestMethod(t *testing.T) {
	h := newHandle(t)
	c := &counter{}
	setPointer(h, "c", c)
	setPointer(h, "nilc", (*counter)(nil))
	setPointer(h, "other", &point{})

	require.NoError(t, NewLibrary("t").Add("add", signature.Method((*counter).Add)).Register(h))

	run(t, h, `
		a = t.add(c, 5)
		b = t.add(c, 2)
		nnil = select('#', t.add(nilc, 1))
		nwrong = select('#', t.add(other, 1))
		nnum = select('#', t.add(42, 1))
	`)
	require.Equal(t, lua.LNumber(5), global(h, "a"))
	require.Equal(t, lua.LNumber(7), global(h, "b"))
	require.Equal(t, 7, c.N)
	require.Equal(t, lua.LNumber(0), global(h, "nnil"), "nil receiver yields no results")
	require.Equal(t, lua.LNumber(0), global(h, "nwrong"))
	require.Equal(t, lua.LNumber(0), global(h, "nnum"))
}

func TestMethodNilReceiverStrict(t *testing.T) {
	h := newHandle(t, stack.WithStrict(true))
	setPointer(h, "nilc", (*counter)(nil))
	require.NoError(t, NewLibrary("t").Add("add", signature.Method((*counter).Add)).Register(h))

	err := h.State().DoString(`t.add(nilc, 1)`)
	require.Error(t, err)
	require.True(t, errors.Is(h.LastViolation(), errors.KindNilPointer))
}

func TestFieldAccessor(t *testing.T) {
	h := newHandle(t)
	c := &counter{N: 3, Label: "start"}
	setPointer(h, "c", c)

	require.NoError(t, NewLibrary("t").
		Add("n", signature.Field[counter]("N")).
		Add("label", signature.Field[counter]("Label")).
		Register(h))

	run(t, h, `
		before = t.n(c)
		t.n(c, 9)
		t.label(c, "renamed")
		t.n(c, "not a number")
		after = t.n(c)
	`)
	require.Equal(t, lua.LNumber(3), global(h, "before"))
	require.Equal(t, lua.LNumber(9), global(h, "after"))
	require.Equal(t, counter{N: 9, Label: "renamed"}, *c)
}

func TestFunctionObjectAndPointer(t *testing.T) {
	h := newHandle(t)

	double := func(x int) int { return x * 2 }
	fp := &double
	var nilFn func(int) int

	require.NoError(t, NewLibrary("t").
		Add("obj", adder{base: 10}).
		Add("fp", fp).
		Add("nilfp", &nilFn).
		Register(h))

	run(t, h, `a = t.obj(5); b = t.fp(4); n = select('#', t.nilfp(1))`)
	require.Equal(t, lua.LNumber(15), global(h, "a"))
	require.Equal(t, lua.LNumber(8), global(h, "b"))
	require.Equal(t, lua.LNumber(0), global(h, "n"))

	*fp = func(x int) int { return x * 3 }
	run(t, h, `b = t.fp(4)`)
	require.Equal(t, lua.LNumber(12), global(h, "b"), "pointer is dereferenced per call")
}

func TestResultsAndErrors(t *testing.T) {
	h := newHandle(t)
	require.NoError(t, NewLibrary("t").
		Add("parse", func(s string) (int, error) {
			if s == "bad" {
				return 0, fmt.Errorf("bad input")
			}
			return len(s), nil
		}).
		Add("pair", func() (int, string) { return 1, "one" }).
		Add("ctx", func(ctx context.Context, x int) bool { return ctx != nil && x == 1 }).
		Add("boom", func() { panic("boom") }).
		Register(h))

	run(t, h, `
		v, msg = t.parse("bad")
		ok = t.parse("good")
		nok = select('#', t.parse("good"))
		p1, p2 = t.pair()
		c = t.ctx(1)
		nboom = select('#', t.boom())
	`)
	require.Equal(t, lua.LNil, global(h, "v"))
	require.Equal(t, lua.LString("bad input"), global(h, "msg"))
	require.Equal(t, lua.LNumber(4), global(h, "ok"))
	require.Equal(t, lua.LNumber(1), global(h, "nok"))
	require.Equal(t, lua.LNumber(1), global(h, "p1"))
	require.Equal(t, lua.LString("one"), global(h, "p2"))
	require.Equal(t, lua.LTrue, global(h, "c"))
	require.Equal(t, lua.LNumber(0), global(h, "nboom"), "panics are recovered")
}

type span struct{ from, to int }

func (s span) MarshalLua(w *stream.Writer) {
	w.BeginTable().Int(int64(s.from)).Int(int64(s.to)).EndTable()
}

func TestScalarThenCompositeResults(t *testing.T) {
	for _, strict := range []bool{false, true} {
		h := newHandle(t, stack.WithStrict(strict))
		require.NoError(t, NewLibrary("t").
			Add("list", func() (int, []int) { return 7, []int{1, 2, 3} }).
			Add("record", func() (string, point) { return "p", point{X: 1, Y: 2} }).
			Add("custom", func() (bool, span) { return true, span{3, 9} }).
			Register(h))

		run(t, h, `
			nl = select('#', t.list())
			l1, l2 = t.list()
			nr = select('#', t.record())
			r1, r2 = t.record()
			nc = select('#', t.custom())
			c1, c2 = t.custom()
		`)
		for _, n := range []string{"nl", "nr", "nc"} {
			require.Equal(t, lua.LNumber(2), global(h, n), "%s strict=%v", n, strict)
		}
		require.Equal(t, lua.LNumber(7), global(h, "l1"))
		require.Equal(t, 3, global(h, "l2").(*lua.LTable).Len())
		require.Equal(t, lua.LString("p"), global(h, "r1"))
		require.Equal(t, lua.LNumber(2), global(h, "r2").(*lua.LTable).RawGetString("Y"))
		require.Equal(t, lua.LTrue, global(h, "c1"))
		require.Equal(t, lua.LNumber(9), global(h, "c2").(*lua.LTable).RawGetInt(2))
		require.Equal(t, 0, h.Top())
	}
}

func TestTypedAdapters(t *testing.T) {
	h := newHandle(t)
	var seen string
	require.NoError(t, NewLibrary("t").
		Add("zero", Func0(func() int { return 7 })).
		Add("neg", Func1(func(x float64) float64 { return -x })).
		Add("mul", Func2(func(a, b int) int { return a * b })).
		Add("join", Func3(func(a, b, c string) string { return a + b + c })).
		Add("see", Proc1(func(s string) { seen = s })).
		Register(h))

	run(t, h, `
		z = t.zero()
		n = t.neg(2.5)
		m = t.mul(6, 7)
		m2 = t.mul(6, "x")
		j = t.join("a", "b", "c")
		t.see("seen")
	`)
	require.Equal(t, lua.LNumber(7), global(h, "z"))
	require.Equal(t, lua.LNumber(-2.5), global(h, "n"))
	require.Equal(t, lua.LNumber(42), global(h, "m"))
	require.Equal(t, lua.LNumber(0), global(h, "m2"))
	require.Equal(t, lua.LString("abc"), global(h, "j"))
	require.Equal(t, "seen", seen)
}

func TestStorage(t *testing.T) {
	rec, err := NewRecord(func() {})
	require.NoError(t, err)
	require.Equal(t, StorageInline, rec.Storage())
	require.NoError(t, rec.Destroy())

	rec, err = NewRecord(&closingFn{})
	require.NoError(t, err)
	require.Equal(t, StorageIndirect, rec.Storage())
	require.Equal(t, signature.ShapeObject, rec.Signature().Shape)
}

func TestRecordIDTagsRelease(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := stack.New(lua.NewState(), stack.WithLogger(zap.New(core)))

	a, err := NewRecord(&closingFn{})
	require.NoError(t, err)
	b, err := NewRecord(&closingFn{})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, a.ID())
	require.NotEqual(t, a.ID(), b.ID())

	ud := store(h, a)
	require.NotNil(t, ud)
	h.Close()

	released := logs.FilterMessage("callable released").All()
	require.Len(t, released, 1)
	require.Equal(t, a.ID().String(), released[0].ContextMap()["record"])
}

func TestIndirectClosedOnHandleClose(t *testing.T) {
	h := stack.New(lua.NewState())
	c := &closingFn{}

	require.NoError(t, Push(h, c))
	require.NoError(t, h.State().CallByParam(lua.P{Fn: h.Get(-1), NRet: 1, Protect: true}))
	require.Equal(t, lua.LString("open"), h.Get(-1))
	require.Zero(t, c.closed)

	h.Close()
	h.Close()
	require.Equal(t, 1, c.closed)
}

func TestIndirectCollect(t *testing.T) {
	h := newHandle(t)
	c := &closingFn{}

	fn, err := Function(h, c)
	require.NoError(t, err)
	ud := fn.Upvalues[0].Value().(*lua.LUserData)
	require.Equal(t, gcMetatable(h.State()), ud.Metatable, "metatable is shared")

	L := h.State()
	gc := L.GetField(ud.Metatable, "__gc")
	require.NoError(t, L.CallByParam(lua.P{Fn: gc, Protect: true}, ud))
	require.NoError(t, L.CallByParam(lua.P{Fn: gc, Protect: true}, ud))
	require.Equal(t, 1, c.closed)

	top := h.Top()
	require.NoError(t, L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}))
	require.Equal(t, top, h.Top(), "released callables return nothing")

	h.Close()
	require.Equal(t, 1, c.closed)
}

func TestRegisterKeepsStackHeight(t *testing.T) {
	h := newHandle(t)
	h.Push(lua.LString("sentinel"))

	require.NoError(t, NewLibrary("ok").Add("f", func() int { return 1 }).Register(h))
	require.Equal(t, 1, h.Top())
	require.NotNil(t, Lookup(h, "ok"))

	err := NewLibrary("broken").
		Add("good", func() {}).
		Add("bad", func(chan int) {}).
		Register(h)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.KindRegistration))
	require.True(t, errors.Is(err, errors.KindUnsupported))
	require.Equal(t, 1, h.Top())
	require.Nil(t, Lookup(h, "broken"))

	require.Error(t, NewLibrary("").Register(h))
}

func TestLibrarySignatures(t *testing.T) {
	lib := NewLibrary("t").
		Add("less", func(int, float64) bool { return false }).
		Add("mul", Func2(func(a, b int) int { return a * b }))

	sigs, err := lib.Signatures()
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	require.Equal(t, "func(int, float64) bool", sigs[0].String())
	require.Equal(t, "func(int, int) int", sigs[1].String())
	require.Equal(t, "t", lib.Name())
	require.Len(t, lib.Entries(), 2)
}

func TestPushOnClosedHandle(t *testing.T) {
	h := stack.New(lua.NewState())
	h.Close()
	err := Push(h, func() {})
	require.True(t, errors.Is(err, errors.KindClosed))
}
