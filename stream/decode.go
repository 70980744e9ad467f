package stream

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// Unmarshaler is implemented by types that read themselves from a reader.
// At the top level the reader walks the value's own table; for a nested
// value it is a child reader over the subtable.
type Unmarshaler interface {
	UnmarshalLua(r *Reader)
}

var unmarshalerType = reflect.TypeFor[Unmarshaler]()

// Unmarshal reads the slot at idx into dst, a non-nil pointer. Composite
// destinations (structs, slices, arrays, maps, Unmarshalers) read the
// slot's table element by element. It reports whether every read
// succeeded; on failure the parts that could not be read keep their
// previous values.
func Unmarshal(h *stack.Handle, idx int, dst any) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		_ = h.Violation(errors.Contract(errors.PhaseDecode, "unmarshal destination %T is not a non-nil pointer", dst))
		return false
	}
	r := NewReader(h, idx)
	defer r.Close()
	return r.decodeTop(rv.Elem())
}

// UnmarshalOr reads the slot at idx as a T, starting from def.
func UnmarshalOr[T any](h *stack.Handle, idx int, def T) (T, bool) {
	v := def
	ok := Unmarshal(h, idx, &v)
	return v, ok
}

// UnmarshalValue reads the slot at idx into an addressable value.
func UnmarshalValue(h *stack.Handle, idx int, v reflect.Value) bool {
	r := NewReader(h, idx)
	defer r.Close()
	return r.decodeTop(v)
}

// Decode reads the next value into dst, a non-nil pointer. Composite
// destinations require the current element to be a subtable and are read
// through a child reader.
func (r *Reader) Decode(dst any) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		r.violation("decode destination %T is not a non-nil pointer", dst)
		return false
	}
	return r.decodeValue(rv.Elem())
}

func (r *Reader) decodeTop(v reflect.Value) bool {
	if !isComposite(v.Type()) {
		return r.decodeValue(v)
	}
	if r.table == nil {
		r.mismatch()
		return false
	}
	return r.fill(v)
}

func (r *Reader) mismatch() {
	if !r.eof {
		r.ok = false
		r.fails++
		r.next()
	}
}

func (r *Reader) decodeValue(v reflect.Value) bool {
	if r.eof {
		return false
	}
	t := v.Type()

	if isComposite(t) {
		if !r.IsSubtable() {
			r.mismatch()
			return false
		}
		child := NewReader(r.h, -1)
		ok := child.fill(v)
		r.CleanupSubtable(child)
		r.ok = ok
		if !ok {
			r.fails++
		}
		return ok
	}

	switch t {
	case wstringType:
		var w codec.WString
		return setIf(r.Wide(&w), v, reflect.ValueOf(w))
	case bytesType:
		var b []byte
		return setIf(r.Bytes(&b), v, reflect.ValueOf(b))
	case lvalueType:
		var lv lua.LValue
		return setIf(r.Value(&lv), v, reflect.ValueOf(&lv).Elem())
	}

	switch t.Kind() {
	case reflect.Bool:
		var b bool
		if r.Bool(&b) {
			v.SetBool(b)
			return true
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		if r.Int(&i) {
			v.SetInt(i)
			return true
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		if r.Uint(&u) {
			v.SetUint(u)
			return true
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if r.Number(&f) {
			v.SetFloat(f)
			return true
		}
	case reflect.String:
		var s string
		if r.String(&s) {
			v.SetString(s)
			return true
		}
	case reflect.Pointer:
		return r.Pointer(v.Addr().Interface())
	case reflect.Interface:
		if t.NumMethod() != 0 {
			r.unsupported(t)
			return false
		}
		var lv lua.LValue
		if r.Value(&lv) {
			if g := toGo(lv); g != nil {
				v.Set(reflect.ValueOf(g))
			} else {
				v.SetZero()
			}
			return true
		}
	default:
		r.unsupported(t)
	}
	return false
}

func setIf(ok bool, dst, src reflect.Value) bool {
	if ok {
		dst.Set(src)
	}
	return ok
}

func (r *Reader) unsupported(t reflect.Type) {
	err := errors.Unsupported(errors.PhaseDecode, t.String(), "no Lua representation")
	r.h.Logger().Debug(err.Error())
	if r.err == nil {
		r.err = err
	}
	r.mismatch()
}

// toGo converts scalars to plain Go values; other values stay Lua values.
func toGo(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LNilType:
		return nil
	case *lua.LUserData:
		if p, ok := codec.LightPointer(v); ok {
			return p
		}
		return v
	default:
		return lv
	}
}

func isComposite(t reflect.Type) bool {
	if t == bytesType || t == wstringType {
		return false
	}
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}

// fill reads a composite value from the elements of r's table.
func (r *Reader) fill(v reflect.Value) bool {
	if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(unmarshalerType) {
		fails := r.fails
		v.Addr().Interface().(Unmarshaler).UnmarshalLua(r)
		return r.fails == fails && r.err == nil
	}
	switch v.Kind() {
	case reflect.Struct:
		return r.fillStruct(v)
	case reflect.Slice:
		return r.fillSlice(v)
	case reflect.Array:
		return r.fillArray(v)
	case reflect.Map:
		return r.fillMap(v)
	}
	r.unsupported(v.Type())
	return false
}

// fillStruct looks each field up by name. Absent keys leave the field as
// it was.
func (r *Reader) fillStruct(v reflect.Value) bool {
	all := true
	for _, f := range fieldsOf(v.Type()) {
		if r.eof {
			break
		}
		r.ReadKey(f.name)
		if r.Peek() == lua.LNil {
			r.Skip()
			continue
		}
		if !r.decodeValue(v.FieldByIndex(f.index)) {
			all = false
		}
	}
	r.ok = all
	return all
}

// fillSlice appends every element in iteration order. Elements that fail
// to decode are appended as zero values.
func (r *Reader) fillSlice(v reflect.Value) bool {
	all := true
	out := reflect.MakeSlice(v.Type(), 0, r.table.Len())
	for !r.eof {
		elem := reflect.New(v.Type().Elem()).Elem()
		if !r.decodeValue(elem) {
			all = false
		}
		out = reflect.Append(out, elem)
	}
	v.Set(out)
	r.ok = all
	return all
}

func (r *Reader) fillArray(v reflect.Value) bool {
	all := true
	for i := 0; i < v.Len() && !r.eof; i++ {
		if !r.decodeValue(v.Index(i)) {
			all = false
		}
	}
	r.ok = all
	return all
}

func (r *Reader) fillMap(v reflect.Value) bool {
	t := v.Type()
	if v.IsNil() {
		v.Set(reflect.MakeMap(t))
	}
	all := true
	for !r.eof {
		key, ok := convertKey(r.Key(), t.Key())
		if !ok {
			all = false
			r.Skip()
			continue
		}
		elem := reflect.New(t.Elem()).Elem()
		if r.decodeValue(elem) {
			v.SetMapIndex(key, elem)
		} else {
			all = false
		}
	}
	r.ok = all
	return all
}

func convertKey(k lua.LValue, t reflect.Type) (reflect.Value, bool) {
	out := reflect.New(t).Elem()
	switch key := k.(type) {
	case lua.LString:
		if t.Kind() != reflect.String {
			return reflect.Value{}, false
		}
		out.SetString(string(key))
	case lua.LNumber:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.SetInt(int64(key))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(uint64(key))
		case reflect.Float32, reflect.Float64:
			out.SetFloat(float64(key))
		default:
			return reflect.Value{}, false
		}
	default:
		return reflect.Value{}, false
	}
	return out, true
}
