// Package demo is the sample library exercised by the luabind command: a
// free function with mixed scalar and table arguments, a positional
// rectangle codec, a nested component codec and a class exposed through
// methods and field accessors.
package demo

import (
	"fmt"
	"io"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/dispatch"
	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stream"
)

// Rect travels as a positional table {left, top, right, bottom}.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) MarshalLua(w *stream.Writer) {
	w.BeginTable()
	stream.Integer(w, r.Left)
	stream.Integer(w, r.Top)
	stream.Integer(w, r.Right)
	stream.Integer(w, r.Bottom)
	w.EndTable()
}

func (r *Rect) UnmarshalLua(in *stream.Reader) {
	stream.ReadInteger(in, &r.Left)
	stream.ReadInteger(in, &r.Top)
	stream.ReadInteger(in, &r.Right)
	stream.ReadInteger(in, &r.Bottom)
}

func (r Rect) String() string {
	return fmt.Sprintf("{ %d, %d, %d, %d }", r.Left, r.Top, r.Right, r.Bottom)
}

// Component travels as {a, {left, top, right, bottom}, c}.
type Component struct {
	A string
	B Rect
	C float64
}

func (c Component) MarshalLua(w *stream.Writer) {
	w.BeginTable().String(c.A)

	sub := stream.NewWriter(w.Handle())
	sub.BeginTable()
	stream.Integer(sub, c.B.Left)
	stream.Integer(sub, c.B.Top)
	stream.Integer(sub, c.B.Right)
	stream.Integer(sub, c.B.Bottom)
	sub.EndTable()
	w.InsertSubtable(sub)

	w.Number(c.C).EndTable()
}

// UnmarshalLua reads the rectangle only when the second element is a
// table; otherwise B keeps its value.
func (c *Component) UnmarshalLua(in *stream.Reader) {
	in.String(&c.A)
	if in.IsSubtable() {
		sub := stream.NewReader(in.Handle(), -1)
		stream.ReadInteger(sub, &c.B.Left)
		stream.ReadInteger(sub, &c.B.Top)
		stream.ReadInteger(sub, &c.B.Right)
		stream.ReadInteger(sub, &c.B.Bottom)
		in.CleanupSubtable(sub)
	}
	in.Number(&c.C)
}

// TestClass is handed to scripts as a light pointer.
type TestClass struct {
	Str       codec.WString
	Component Component
}

func (t *TestClass) SetStr(s codec.WString) { t.Str = s }

func (t *TestClass) GetStr() codec.WString { return t.Str }

func (t *TestClass) SetComponent(c Component) { t.Component = c }

// TestFunc1 formats its arguments, writes the line to out and returns it.
func TestFunc1(out io.Writer) func(int, float64, bool, codec.WString, Rect) string {
	return func(a int, b float64, c bool, d codec.WString, e Rect) string {
		line := fmt.Sprintf("%d %g %t %s %s", a, b, c, d, e)
		if out != nil {
			fmt.Fprintln(out, line)
		}
		return line
	}
}

// Library builds the sample library under name. TestFunc1 output goes to
// out when it is not nil.
func Library(name string, out io.Writer) *dispatch.Library {
	return dispatch.NewLibrary(name).
		Add("TestFunc1", TestFunc1(out)).
		Add("SetStr", signature.Method((*TestClass).SetStr)).
		Add("GetStr", signature.Method((*TestClass).GetStr)).
		Add("SetComponent", signature.Method((*TestClass).SetComponent)).
		Add("MemberStr", signature.Field[TestClass]("Str")).
		Add("MemberComponent", signature.Field[TestClass]("Component"))
}
