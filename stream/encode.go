package stream

import (
	"cmp"
	"reflect"
	"slices"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// Marshaler is implemented by types that write themselves as one value,
// usually a table built with BeginTable and EndTable.
type Marshaler interface {
	MarshalLua(w *Writer)
}

var (
	marshalerType = reflect.TypeFor[Marshaler]()
	lvalueType    = reflect.TypeFor[lua.LValue]()
	errorType     = reflect.TypeFor[error]()
	wstringType   = reflect.TypeFor[codec.WString]()
	bytesType     = reflect.TypeFor[[]byte]()
)

// Marshal pushes v as one value and returns the number of slots pushed.
func Marshal(h *stack.Handle, v any) (int, error) {
	w := NewWriter(h)
	w.Encode(v)
	return w.Pushed(), w.Err()
}

// Encode writes v as one value. Slices and arrays become positional
// tables, maps and structs keyed tables, pointers light user data.
// Composite values nested in an open table are built by a child writer.
func (w *Writer) Encode(v any) *Writer {
	if v == nil {
		return w.Nil()
	}
	return w.encodeValue(reflect.ValueOf(v))
}

func (w *Writer) encodeValue(rv reflect.Value) *Writer {
	if !rv.IsValid() {
		return w.Nil()
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return w.Nil()
		}
		rv = rv.Elem()
	}
	t := rv.Type()

	switch {
	case t == wstringType:
		return w.Wide(rv.Interface().(codec.WString))
	case t == bytesType:
		return w.Bytes(rv.Bytes())
	case t.Implements(lvalueType):
		return w.Value(rv.Interface().(lua.LValue))
	case t.Implements(errorType):
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return w.Nil()
		}
		return w.String(rv.Interface().(error).Error())
	}

	if m, ok := asMarshaler(rv); ok {
		return w.composite(func(cw *Writer) { m.MarshalLua(cw) })
	}

	switch rv.Kind() {
	case reflect.Bool:
		return w.Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return w.Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return w.Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return w.Number(rv.Float())
	case reflect.String:
		return w.String(rv.String())
	case reflect.Pointer:
		// A nil struct pointer stays light user data so callees can see it.
		if rv.IsNil() && t.Elem().Kind() != reflect.Struct {
			return w.Nil()
		}
		return w.Pointer(rv.Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return w.Nil()
		}
		return w.composite(func(cw *Writer) { cw.encodeList(rv) })
	case reflect.Array:
		return w.composite(func(cw *Writer) { cw.encodeList(rv) })
	case reflect.Map:
		if rv.IsNil() {
			return w.Nil()
		}
		return w.composite(func(cw *Writer) { cw.encodeMap(rv) })
	case reflect.Struct:
		return w.composite(func(cw *Writer) { cw.encodeStruct(rv) })
	}

	w.unsupported(t)
	return w.Nil()
}

func (w *Writer) unsupported(t reflect.Type) {
	err := errors.Unsupported(errors.PhaseEncode, t.String(), "no Lua representation")
	w.h.Logger().Debug(err.Error())
	if w.err == nil {
		w.err = err
	}
}

// composite runs fill on this writer while it is still free to open a
// table. Otherwise a child writer builds the value, which is then stored in
// the open table or left as the next top-level value.
func (w *Writer) composite(fill func(*Writer)) *Writer {
	if w.tableIndex == 0 && !w.scalar {
		fill(w)
		return w
	}
	child := NewWriter(w.h)
	fill(child)
	w.adopt(child)
	return w
}

func asMarshaler(rv reflect.Value) (Marshaler, bool) {
	t := rv.Type()
	if t.Kind() == reflect.Pointer {
		return nil, false
	}
	if t.Implements(marshalerType) {
		return rv.Interface().(Marshaler), true
	}
	if reflect.PointerTo(t).Implements(marshalerType) {
		cp := reflect.New(t)
		cp.Elem().Set(rv)
		return cp.Interface().(Marshaler), true
	}
	return nil, false
}

// open begins a table and reports whether this call opened it. Elements
// must not be written after a refused BeginTable.
func (w *Writer) open() bool {
	free := w.tableIndex == 0
	w.BeginTable()
	return free && w.tableIndex != 0
}

func (w *Writer) encodeList(rv reflect.Value) {
	if !w.open() {
		return
	}
	for i := range rv.Len() {
		w.encodeValue(rv.Index(i))
	}
	w.EndTable()
}

func (w *Writer) encodeMap(rv reflect.Value) {
	keys := rv.MapKeys()
	slices.SortFunc(keys, compareKeys)

	if !w.open() {
		return
	}
	for _, k := range keys {
		key, ok := mapKey(k)
		if !ok {
			w.unsupported(k.Type())
			continue
		}
		w.key(key)
		w.encodeValue(rv.MapIndex(k))
	}
	w.EndTable()
}

func mapKey(k reflect.Value) (lua.LValue, bool) {
	switch k.Kind() {
	case reflect.String:
		return lua.LString(k.String()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(k.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(k.Uint()), true
	default:
		return nil, false
	}
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	default:
		return 0
	}
}

func (w *Writer) encodeStruct(rv reflect.Value) {
	if !w.open() {
		return
	}
	for _, f := range fieldsOf(rv.Type()) {
		w.Key(f.name)
		w.encodeValue(rv.FieldByIndex(f.index))
	}
	w.EndTable()
}
