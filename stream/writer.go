package stream

import (
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/exp/constraints"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// Writer sequences writes into stack slots. Without an open table every
// write pushes one top-level value. Between BeginTable and EndTable every
// write appends the next positional element, or stores under the key given
// by the preceding Key call.
//
// Mixing keyed and positional writes in one table is allowed, but iterating
// that table afterwards does not necessarily visit elements in write order.
type Writer struct {
	h          *stack.Handle
	err        error
	base       int
	tableIndex int
	scalar     bool
}

func NewWriter(h *stack.Handle) *Writer {
	return &Writer{h: h, base: h.Top()}
}

func (w *Writer) Handle() *stack.Handle { return w.h }

// Err returns the first contract violation seen by this writer.
func (w *Writer) Err() error { return w.err }

// Pushed reports the net number of slots produced since construction.
func (w *Writer) Pushed() int { return w.h.Top() - w.base }

// InTable reports whether a table is open.
func (w *Writer) InTable() bool { return w.tableIndex != 0 }

func (w *Writer) violation(format string, args ...any) {
	err := w.h.Violation(errors.Contract(errors.PhaseEncode, format, args...))
	if w.err == nil {
		w.err = err
	}
}

// BeginTable opens a new table. Only one table may be open per writer, and
// a writer that already produced a top-level scalar cannot open one.
func (w *Writer) BeginTable() *Writer {
	if w.tableIndex != 0 {
		w.violation("begin table: table at %d already open", w.tableIndex)
		return w
	}
	if w.scalar {
		w.violation("begin table: writer already produced a scalar value")
		return w
	}
	w.h.Push(w.h.State().NewTable())
	w.tableIndex = w.h.Top()
	return w
}

// EndTable closes the open table, leaving it as the top slot.
func (w *Writer) EndTable() *Writer {
	if w.tableIndex == 0 {
		w.violation("end table: no table open")
		return w
	}
	if _, ok := w.h.Get(w.tableIndex).(*lua.LTable); !ok {
		w.violation("end table: slot %d no longer holds a table", w.tableIndex)
		w.tableIndex = 0
		return w
	}
	if top := w.h.Top(); top != w.tableIndex {
		w.violation("end table: %d unexpected slots above table", top-w.tableIndex)
		if top > w.tableIndex {
			w.h.SetTop(w.tableIndex)
		}
	}
	w.tableIndex = 0
	return w
}

// Key makes the next write store under name instead of appending.
func (w *Writer) Key(name string) *Writer {
	return w.key(lua.LString(name))
}

func (w *Writer) key(k lua.LValue) *Writer {
	if w.tableIndex == 0 {
		w.violation("key %s: no table open", k.String())
		return w
	}
	if top := w.h.Top(); top != w.tableIndex {
		w.violation("key %s: %d pending slots above table", k.String(), top-w.tableIndex)
		return w
	}
	w.h.Push(k)
	return w
}

// InsertSubtable moves the closed table produced by child into the open
// table as its next element.
func (w *Writer) InsertSubtable(child *Writer) *Writer {
	switch {
	case child.h != w.h:
		w.violation("insert subtable: child writes to another state")
	case w.tableIndex == 0:
		w.violation("insert subtable: no table open")
	case child.tableIndex != 0:
		w.violation("insert subtable: child table at %d still open", child.tableIndex)
	case w.h.Top() <= w.tableIndex:
		w.violation("insert subtable: nothing above parent table")
	default:
		if _, ok := w.h.Get(-1).(*lua.LTable); !ok {
			w.violation("insert subtable: top slot is %s, not a table", codec.KindOf(w.h.Get(-1)))
			return w
		}
		w.store()
	}
	return w
}

// adopt stores whatever single value child produced, table or scalar.
func (w *Writer) adopt(child *Writer) {
	if child.err != nil && w.err == nil {
		w.err = child.err
	}
	if child.tableIndex != 0 {
		w.violation("child table at %d still open", child.tableIndex)
		return
	}
	if w.tableIndex == 0 {
		if child.Pushed() > 0 && !isTable(w.h.Get(-1)) {
			w.scalar = true
		}
		return
	}
	w.store()
}

// store files the value on top of the stack into the open table.
func (w *Writer) store() {
	if w.tableIndex == 0 {
		w.scalar = true
		return
	}
	tb, ok := w.h.Get(w.tableIndex).(*lua.LTable)
	if !ok {
		w.violation("store: slot %d no longer holds a table", w.tableIndex)
		return
	}
	switch offset := w.h.Top() - w.tableIndex; offset {
	case 1:
		tb.RawSetInt(tb.Len()+1, w.h.Get(-1))
		w.h.Pop(1)
	case 2:
		k := w.h.Get(-2)
		switch k.Type() {
		case lua.LTString, lua.LTNumber:
			tb.RawSet(k, w.h.Get(-1))
		default:
			w.violation("store: key of type %s", k.Type())
		}
		w.h.Pop(2)
	default:
		w.violation("store: %d slots above table, expected 1 or 2", offset)
		if offset > 0 {
			w.h.SetTop(w.tableIndex)
		}
	}
}

func isTable(v lua.LValue) bool {
	_, ok := v.(*lua.LTable)
	return ok
}

func (w *Writer) Nil() *Writer {
	codec.PushNil(w.h)
	w.store()
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	codec.PushBool(w.h, v)
	w.store()
	return w
}

func (w *Writer) Int(v int64) *Writer {
	codec.PushInt(w.h, v)
	w.store()
	return w
}

func (w *Writer) Uint(v uint64) *Writer {
	codec.PushUint(w.h, v)
	w.store()
	return w
}

func (w *Writer) Number(v float64) *Writer {
	codec.PushNumber(w.h, v)
	w.store()
	return w
}

func (w *Writer) String(v string) *Writer {
	codec.PushString(w.h, v)
	w.store()
	return w
}

func (w *Writer) Bytes(v []byte) *Writer {
	codec.PushBytes(w.h, v)
	w.store()
	return w
}

// Wide writes a transcoded wide string; an untranscodable one is written
// as the empty string.
func (w *Writer) Wide(v codec.WString) *Writer {
	codec.PushWide(w.h, v)
	w.store()
	return w
}

// Pointer writes p as light user data.
func (w *Writer) Pointer(p any) *Writer {
	codec.PushPointer(w.h, p)
	w.store()
	return w
}

// Value writes a raw Lua value.
func (w *Writer) Value(v lua.LValue) *Writer {
	if v == nil {
		v = lua.LNil
	}
	w.h.Push(v)
	w.store()
	return w
}

// Integer writes any integer type through the 64-bit path.
func Integer[T constraints.Integer](w *Writer, v T) *Writer {
	codec.PushInteger(w.h, v)
	w.store()
	return w
}
