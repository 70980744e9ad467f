package demo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/runtime"
	"github.com/wippyai/luabind/stream"
)

func setup(t *testing.T, name string, opts ...runtime.Option) (*runtime.Runtime, *Fixture, *bytes.Buffer) {
	t.Helper()
	rt, err := runtime.New(opts...)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	var out bytes.Buffer
	f, err := Install(rt, name, &out)
	require.NoError(t, err)
	require.NoError(t, rt.DoString(`print = function() end`))
	return rt, f, &out
}

func TestScript(t *testing.T) {
	rt, f, out := setup(t, "LibTest")

	require.NoError(t, rt.DoString(Script))

	assert.Equal(t, "1 2.5 true wide text { 10, 20, 110, 220 }\n", out.String())
	assert.Equal(t, "changed by script", f.A.Str.String())
	assert.Equal(t, "changed by script (copied)", f.B.Str.String())

	want := Component{A: "component", B: Rect{0, 0, 640, 480}, C: 1.5}
	assert.Equal(t, want, f.A.Component)
	assert.Equal(t, want, f.B.Component)
	assert.Zero(t, rt.StackCount())
}

func TestScriptUnderOtherName(t *testing.T) {
	rt, f, _ := setup(t, "Sample")

	require.NoError(t, rt.DoString(Script))
	assert.Equal(t, "changed by script", f.A.Str.String())

	assert.Equal(t, lua.LNil, rt.State().GetGlobal("LibTest"))
}

func TestTestFunc1ArgumentMismatch(t *testing.T) {
	rt, _, out := setup(t, "LibTest")

	require.NoError(t, rt.DoString(`r = LibTest.TestFunc1("x", 2, 1, "w", 5)`))
	r, _ := runtime.Global(rt, "r", "")
	assert.Equal(t, "0 2 false w { 0, 0, 0, 0 }", r)
	assert.Equal(t, r+"\n", out.String())
}

func TestComponentWithoutRect(t *testing.T) {
	rt, f, _ := setup(t, "LibTest")
	f.A.Component.B = Rect{1, 2, 3, 4}

	require.NoError(t, rt.DoString(`LibTest.SetComponent(pA, {"plain", 7})`))

	assert.Equal(t, "plain", f.A.Component.A)
	assert.Equal(t, Rect{}, f.A.Component.B)
	assert.Equal(t, 7.0, f.A.Component.C)
}

func TestNilReceiver(t *testing.T) {
	rt, f, _ := setup(t, "LibTest")

	require.NoError(t, rt.DoString(`
		n = select('#', LibTest.GetStr(nil))
		LibTest.SetStr(42, "ignored")
	`))
	n, _ := runtime.Global(rt, "n", -1)
	assert.Equal(t, 0, n)
	assert.Equal(t, "LuaTestClass_a", f.A.Str.String())
}

func TestWideEncoding(t *testing.T) {
	rt, f, _ := setup(t, "LibTest", runtime.WithEncoding("gbk"))

	// "中文" in GBK.
	require.NoError(t, rt.DoString(`LibTest.SetStr(pA, "\214\208\206\196"); s = LibTest.GetStr(pA)`))
	assert.Equal(t, codec.Wide("中文"), f.A.Str)
	s, _ := runtime.Global(rt, "s", "")
	assert.Equal(t, "\xd6\xd0\xce\xc4", s)
}

func TestComponentCodec(t *testing.T) {
	rt, _, _ := setup(t, "LibTest")
	h := rt.Handle()

	in := Component{A: "x", B: Rect{-1, -2, 3, 4}, C: 0.25}
	n, err := stream.Marshal(h, in)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	tb := h.Get(-1).(*lua.LTable)
	assert.Equal(t, 3, tb.Len())
	assert.Equal(t, lua.LNumber(-2), tb.RawGetInt(2).(*lua.LTable).RawGetInt(2))

	var out Component
	require.True(t, stream.Unmarshal(h, -1, &out))
	assert.Equal(t, in, out)
	h.Pop(1)
	assert.Zero(t, h.Top())
}

func TestLibrarySignatures(t *testing.T) {
	sigs, err := Library("LibTest", nil).Signatures()
	require.NoError(t, err)

	got := make([]string, len(sigs))
	for i, s := range sigs {
		got[i] = s.String()
	}
	assert.Equal(t, []string{
		"func(int, float64, bool, codec.WString, demo.Rect) string",
		"(*demo.TestClass) func(codec.WString)",
		"(*demo.TestClass) func() codec.WString",
		"(*demo.TestClass) func(demo.Component)",
		"(*demo.TestClass) Str codec.WString",
		"(*demo.TestClass) Component demo.Component",
	}, got)
}
