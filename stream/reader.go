package stream

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/exp/constraints"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// Reader sequences reads out of one stack slot.
//
// Over a scalar slot the first read consumes the value and the reader hits
// EOF. Over a table the reader walks the table with next-key iteration,
// keeping the current key and value in the two slots above the height
// recorded at construction. Nil or absent slots are EOF from the start, as
// are empty tables.
//
// Readers nest strictly: a child reader over a subtable must be created
// after its parent and closed (directly or through CleanupSubtable) before
// it. Close restores the stack height recorded at construction.
type Reader struct {
	h      *stack.Handle
	table  *lua.LTable
	err    error
	index  int
	top    int
	depth  int
	fails  int
	eof    bool
	ok     bool
	keyed  bool
	closed bool
}

// NewReader opens a reader over the slot at idx. Absent slots above the
// top read as nil; idx 0 or a relative index below the bottom of the stack
// is a contract violation and yields a reader already at EOF.
func NewReader(h *stack.Handle, idx int) *Reader {
	r := &Reader{
		h:     h,
		index: h.AbsIndex(idx),
		top:   h.Top(),
		ok:    true,
	}
	depth, err := h.Acquire(r.index)
	r.depth = depth
	if err != nil {
		r.eof = true
		r.err = err
		return r
	}

	if r.index < 1 {
		r.eof = true
		r.violation("reader over stale index %d", idx)
		return r
	}

	switch v := h.Get(r.index).(type) {
	case *lua.LTable:
		r.table = v
		r.advance(lua.LNil)
	default:
		r.eof = v == lua.LNil
	}
	return r
}

func (r *Reader) violation(format string, args ...any) {
	err := r.h.Violation(errors.Contract(errors.PhaseDecode, format, args...))
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Handle() *stack.Handle { return r.h }

// Index returns the absolute slot this reader was opened over.
func (r *Reader) Index() int { return r.index }

func (r *Reader) EOF() bool { return r.eof }

// Bad reports whether the last read failed its type check.
func (r *Reader) Bad() bool { return !r.ok }

// OK is the inverse of Bad.
func (r *Reader) OK() bool { return r.ok }

// Err returns the first contract violation seen by this reader.
func (r *Reader) Err() error { return r.err }

// IsTable reports whether the reader walks a table.
func (r *Reader) IsTable() bool { return r.table != nil }

// Key returns the key of the current table element, or LNil.
func (r *Reader) Key() lua.LValue {
	if r.table == nil || r.eof {
		return lua.LNil
	}
	return r.h.Get(r.top + 1)
}

// Peek returns the current value without consuming it.
func (r *Reader) Peek() lua.LValue {
	if r.eof {
		return lua.LNil
	}
	return r.h.Get(r.valueIndex())
}

// IsSubtable reports whether the current table element is itself a table.
func (r *Reader) IsSubtable() bool {
	if r.table == nil || r.eof {
		return false
	}
	return isTable(r.h.Get(-1))
}

// ReadKey looks name up directly in the table; the next read consumes that
// value instead of the current iteration element.
func (r *Reader) ReadKey(name string) *Reader {
	switch {
	case r.eof:
		r.violation("read key %q past EOF", name)
	case r.table == nil:
		r.violation("read key %q: reader is not over a table", name)
	case r.h.Top() != r.top+2:
		r.violation("read key %q: %d pending slots", name, r.h.Top()-r.top-2)
	default:
		r.h.Push(r.table.RawGetString(name))
		r.keyed = true
	}
	return r
}

// Skip discards the current value.
func (r *Reader) Skip() *Reader {
	if !r.eof {
		r.next()
	}
	return r
}

// CleanupSubtable closes child, which must have been opened over the
// current subtable, and advances past it.
func (r *Reader) CleanupSubtable(child *Reader) *Reader {
	switch {
	case r.eof:
		r.violation("cleanup subtable past EOF")
	case r.table == nil:
		r.violation("cleanup subtable: reader is not over a table")
	case child.h != r.h:
		r.violation("cleanup subtable: child reads another state")
	case child.index <= r.index:
		r.violation("cleanup subtable: child slot %d is not deeper than %d", child.index, r.index)
	default:
		child.Close()
		r.ok = true
		r.next()
		return r
	}
	child.Close()
	return r
}

// Close restores the stack height recorded at construction. It is safe to
// call more than once.
func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.eof = true
	if err := r.h.Release(r.depth); err != nil && r.err == nil {
		r.err = err
	}
	if r.h.Top() > r.top {
		r.h.SetTop(r.top)
	}
}

func (r *Reader) valueIndex() int {
	if r.table != nil {
		return r.h.Top()
	}
	return r.index
}

func (r *Reader) next() {
	if r.table == nil {
		r.eof = true
		return
	}
	if r.keyed {
		r.h.SetTop(r.top + 2)
		r.keyed = false
		return
	}
	r.advance(r.h.Get(r.top + 1))
}

// advance replaces the current key and value with the pair following key.
func (r *Reader) advance(key lua.LValue) {
	r.h.SetTop(r.top)
	k, v := r.table.Next(key)
	if k == lua.LNil {
		r.eof = true
		return
	}
	r.h.Push(k)
	r.h.Push(v)
}

// read runs one typed read: on a tag match it stores into dst, and it
// always advances. Reads at EOF do nothing.
func read[T any](r *Reader, dst *T, fn func(*stack.Handle, int) (T, bool)) bool {
	if r.eof {
		return false
	}
	v, ok := fn(r.h, r.valueIndex())
	r.ok = ok
	if ok {
		*dst = v
	} else {
		r.fails++
	}
	r.next()
	return ok
}

func (r *Reader) Bool(dst *bool) bool { return read(r, dst, codec.ReadBool) }

func (r *Reader) Int(dst *int64) bool { return read(r, dst, codec.ReadInt) }

func (r *Reader) Uint(dst *uint64) bool { return read(r, dst, codec.ReadUint) }

func (r *Reader) Number(dst *float64) bool { return read(r, dst, codec.ReadNumber) }

func (r *Reader) String(dst *string) bool { return read(r, dst, codec.ReadString) }

func (r *Reader) Bytes(dst *[]byte) bool { return read(r, dst, codec.ReadBytes) }

func (r *Reader) Wide(dst *codec.WString) bool { return read(r, dst, codec.ReadWide) }

// Value reads the raw Lua value; it fails only at EOF.
func (r *Reader) Value(dst *lua.LValue) bool {
	return read(r, dst, func(h *stack.Handle, idx int) (lua.LValue, bool) {
		return h.Get(idx), true
	})
}

// Pointer reads light user data into dst, which must be a pointer to a
// pointer variable (for example **T). The stored pointer must be
// assignable to the variable's type.
func (r *Reader) Pointer(dst any) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		r.violation("pointer destination %T is not a non-nil pointer", dst)
		return false
	}
	elem := rv.Elem()
	var got reflect.Value
	ok := read(r, &got, func(h *stack.Handle, idx int) (reflect.Value, bool) {
		return codec.ReadPointerOf(h, idx, elem.Type())
	})
	if ok {
		elem.Set(got)
	}
	return ok
}

// ReadInteger reads a number narrowed to T.
func ReadInteger[T constraints.Integer](r *Reader, dst *T) bool {
	return read(r, dst, codec.Integer[T])
}

func ReadFloat[T constraints.Float](r *Reader, dst *T) bool {
	return read(r, dst, codec.Float[T])
}
