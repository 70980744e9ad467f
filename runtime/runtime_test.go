package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/signature"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func TestRuntime_DoString(t *testing.T) {
	rt := newRuntime(t)

	if err := rt.DoString(`x = 1 + 2`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	x, ok := Global(rt, "x", 0)
	if !ok || x != 3 {
		t.Errorf("x = %d, %v; want 3, true", x, ok)
	}
	if rt.StackCount() != 0 {
		t.Errorf("stack count = %d after DoString", rt.StackCount())
	}

	err := rt.DoString(`error("boom")`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errors.KindExecution) {
		t.Errorf("error kind: %v", err)
	}
	if rt.LastError() != err {
		t.Error("LastError does not report the failure")
	}
}

func TestRuntime_Eval(t *testing.T) {
	rt := newRuntime(t)
	if err := rt.RegisterFunc("m", "pair", func(a int) (int, string) { return a * 2, "ok" }); err != nil {
		t.Fatal(err)
	}

	out, err := rt.Eval(`m.pair(4)`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(out) != 2 || out[0] != lua.LNumber(8) || out[1] != lua.LString("ok") {
		t.Errorf("Eval = %v", out)
	}
	if out, err := rt.Eval(`1, nil, "x"`); err != nil || len(out) != 3 || out[1] != lua.LNil {
		t.Errorf("Eval list = %v, %v", out, err)
	}
	if rt.StackCount() != 0 {
		t.Errorf("stack count = %d after Eval", rt.StackCount())
	}
	if _, err := rt.Eval(`)`); !errors.Is(err, errors.KindExecution) {
		t.Errorf("Eval syntax error = %v", err)
	}
}

func TestRuntime_LoadAndRun(t *testing.T) {
	rt := newRuntime(t)

	if err := rt.Run(); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("Run before load: %v", err)
	}

	if err := rt.LoadString(`n = (n or 0) + 1`); err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if _, ok := Global(rt, "n", 0); ok {
		t.Error("LoadString must not run the chunk")
	}
	for range 3 {
		if err := rt.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if n, _ := Global(rt, "n", 0); n != 3 {
		t.Errorf("n = %d, want 3: runs share globals", n)
	}

	if err := rt.LoadString(`this is not lua`); err == nil {
		t.Error("expected compile error")
	}
}

func TestRuntime_Files(t *testing.T) {
	rt := newRuntime(t)
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(`count = (count or 0) + 10`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := rt.DoFile(path); err != nil {
		t.Fatalf("DoFile: %v", err)
	}
	if err := rt.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := rt.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := Global(rt, "count", 0); n != 20 {
		t.Errorf("count = %d, want 20", n)
	}

	if err := rt.DoFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
}

type settings struct {
	Name  string `lua:"name"`
	Sizes []int  `lua:"sizes"`
}

func TestRuntime_Globals(t *testing.T) {
	rt := newRuntime(t)

	in := settings{Name: "cfg", Sizes: []int{1, 2, 3}}
	if err := rt.SetGlobal("cfg", in); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}
	if err := rt.DoString(`total = #cfg.sizes; label = cfg.name .. "!"`); err != nil {
		t.Fatal(err)
	}
	if total, _ := Global(rt, "total", 0); total != 3 {
		t.Errorf("total = %d", total)
	}
	if label, _ := Global(rt, "label", ""); label != "cfg!" {
		t.Errorf("label = %q", label)
	}

	out, ok := Global(rt, "cfg", settings{})
	if !ok || out.Name != "cfg" || len(out.Sizes) != 3 {
		t.Errorf("round trip = %+v, %v", out, ok)
	}

	if got, ok := Global(rt, "missing", "default"); ok || got != "default" {
		t.Errorf("missing global = %q, %v", got, ok)
	}

	if err := rt.SetGlobal("bad", make(chan int)); err == nil {
		t.Error("expected error for unsupported value")
	}
	if rt.StackCount() != 0 {
		t.Errorf("stack count = %d", rt.StackCount())
	}
}

func TestRuntime_AllocUserDataAndSize(t *testing.T) {
	rt := newRuntime(t)

	ud, err := rt.AllocUserData("blob")
	if err != nil {
		t.Fatal(err)
	}
	if rt.State().GetGlobal("blob") != ud {
		t.Error("user data not published")
	}
	if rt.StackCount() != 0 {
		t.Error("AllocUserData changed the stack")
	}
	if _, err := rt.AllocUserData(""); err == nil {
		t.Error("expected error for empty name")
	}

	h := rt.Handle()
	h.Push(lua.LString("hello"))
	tbl := rt.State().NewTable()
	tbl.Append(lua.LNumber(1))
	tbl.Append(lua.LNumber(2))
	h.Push(tbl)
	h.Push(ud)

	tests := []struct {
		idx  int
		want int
	}{
		{1, 5},
		{2, 2},
		{3, 0},
		{-2, 2},
		{9, 0},
	}
	for _, tt := range tests {
		if got := rt.Size(tt.idx); got != tt.want {
			t.Errorf("Size(%d) = %d, want %d", tt.idx, got, tt.want)
		}
	}
	if rt.StackCount() != 3 {
		t.Errorf("StackCount = %d", rt.StackCount())
	}
	h.SetTop(0)
}

func TestRuntime_Encoding(t *testing.T) {
	if _, err := New(WithEncoding("no-such-encoding")); err == nil {
		t.Fatal("expected error for unknown encoding")
	}

	rt := newRuntime(t, WithEncoding("gbk"))
	if err := rt.RegisterFunc("enc", "echo", func(s codec.WString) codec.WString { return s }); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`out = enc.echo("\214\208")`); err != nil {
		t.Fatal(err)
	}
	if out, _ := Global(rt, "out", ""); out != "\xd6\xd0" {
		t.Errorf("out = %q", out)
	}
}

func TestRuntime_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := newRuntime(t, WithContext(ctx))

	if err := rt.RegisterFunc("sys", "alive", func(ctx context.Context) bool { return ctx.Err() == nil }); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`ok = sys.alive()`); err != nil {
		t.Fatal(err)
	}
	if ok, _ := Global(rt, "ok", false); !ok {
		t.Error("callable did not see the live context")
	}
	cancel()
	if err := rt.DoString(`ok = sys.alive()`); err == nil {
		t.Error("cancelled context should stop execution")
	}
}

func TestRuntime_Closed(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatal(err)
	}
	rt.Close()
	rt.Close()

	if err := rt.DoString(`x = 1`); !errors.Is(err, errors.KindClosed) {
		t.Errorf("DoString after close: %v", err)
	}
	if err := rt.SetGlobal("x", 1); !errors.Is(err, errors.KindClosed) {
		t.Errorf("SetGlobal after close: %v", err)
	}
	if _, ok := Global(rt, "x", 0); ok {
		t.Error("Global after close")
	}
}

func TestAttach(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	rt, err := Attach(L)
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`y = 5`); err != nil {
		t.Fatal(err)
	}
	rt.Close()

	if err := L.DoString(`y = y + 1`); err != nil {
		t.Fatalf("state closed by Attach runtime: %v", err)
	}
	if L.GetGlobal("y") != lua.LNumber(6) {
		t.Error("state lost globals")
	}
	if _, err := Attach(nil); err == nil {
		t.Error("expected error for nil state")
	}
}

type widget struct {
	Width int
}

func (w *widget) Grow(by int) int {
	w.Width += by
	return w.Width
}

func TestRuntime_MethodsAndFields(t *testing.T) {
	rt := newRuntime(t)
	w := &widget{Width: 1}

	for name, fn := range map[string]any{
		"grow":  signature.Method((*widget).Grow),
		"width": signature.Field[widget]("Width"),
	} {
		if err := rt.RegisterFunc("ui", name, fn); err != nil {
			t.Fatal(err)
		}
	}
	if err := rt.SetGlobal("w", w); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`ui.grow(w, 4); ui.width(w, ui.width(w) * 2)`); err != nil {
		t.Fatal(err)
	}
	if w.Width != 10 {
		t.Errorf("Width = %d, want 10", w.Width)
	}
}

func TestRuntime_ErrorResult(t *testing.T) {
	rt := newRuntime(t)
	err := rt.RegisterFunc("io2", "open", func(name string) (string, error) {
		return "", fmt.Errorf("cannot open %s", name)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`v, msg = io2.open("f")`); err != nil {
		t.Fatal(err)
	}
	if msg, _ := Global(rt, "msg", ""); msg != "cannot open f" {
		t.Errorf("msg = %q", msg)
	}
}
