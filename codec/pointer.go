package codec

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/stack"
)

// light marks user data that carries a borrowed Go pointer. It has no
// metatable and no finalizer; the Go side keeps the pointee alive.
type light struct {
	ptr any
}

func isLight(v lua.LValue) bool {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return false
	}
	_, ok = ud.Value.(light)
	return ok
}

// PushPointer pushes p as light user data. A nil interface pushes nil; a
// typed nil pointer pushes light user data holding that nil pointer.
//
// Each push allocates a new LUserData, so two pushes of the same pointer
// compare unequal inside Lua. Reading either back yields the same pointer.
func PushPointer(h *stack.Handle, p any) {
	if p == nil {
		h.Push(lua.LNil)
		return
	}
	ud := h.State().NewUserData()
	ud.Value = light{ptr: p}
	h.Push(ud)
}

// ReadPointer returns the pointer stored by PushPointer at idx.
func ReadPointer(h *stack.Handle, idx int) (any, bool) {
	return LightPointer(h.Get(idx))
}

// LightPointer unwraps a value produced by PushPointer.
func LightPointer(v lua.LValue) (any, bool) {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	l, ok := ud.Value.(light)
	if !ok {
		return nil, false
	}
	return l.ptr, true
}

// Pointer reads a *T stored by PushPointer. It fails on a different tag or
// a pointer of another type. A stored nil *T reads back as (nil, true).
func Pointer[T any](h *stack.Handle, idx int) (*T, bool) {
	p, ok := ReadPointer(h, idx)
	if !ok {
		return nil, false
	}
	typed, ok := p.(*T)
	return typed, ok
}

// ReadPointerOf reads a pointer and checks that it is assignable to t.
func ReadPointerOf(h *stack.Handle, idx int, t reflect.Type) (reflect.Value, bool) {
	p, ok := ReadPointer(h, idx)
	if !ok {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(p)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	return rv, true
}
