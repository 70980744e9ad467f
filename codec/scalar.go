package codec

import (
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/stack"
)

// Every Push function pushes exactly one slot. Every Read function inspects
// the slot at idx without consuming it and reports ok=false when the tag
// does not match; the returned value is then the zero value.

func PushNil(h *stack.Handle) {
	h.Push(lua.LNil)
}

func PushBool(h *stack.Handle, v bool) {
	h.Push(lua.LBool(v))
}

// PushInt pushes an integer. Lua numbers are float64, so magnitudes above
// 2^53 lose precision.
func PushInt(h *stack.Handle, v int64) {
	h.Push(lua.LNumber(v))
}

func PushUint(h *stack.Handle, v uint64) {
	h.Push(lua.LNumber(v))
}

func PushNumber(h *stack.Handle, v float64) {
	h.Push(lua.LNumber(v))
}

func PushString(h *stack.Handle, v string) {
	h.Push(lua.LString(v))
}

// PushBytes copies b into a Lua string.
func PushBytes(h *stack.Handle, b []byte) {
	h.Push(lua.LString(string(b)))
}

func ReadBool(h *stack.Handle, idx int) (bool, bool) {
	v, ok := h.Get(idx).(lua.LBool)
	if !ok {
		return false, false
	}
	return bool(v), true
}

// ReadInt truncates toward zero. Out of range values follow Go's
// float-to-integer conversion and are not checked.
func ReadInt(h *stack.Handle, idx int) (int64, bool) {
	v, ok := h.Get(idx).(lua.LNumber)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

func ReadUint(h *stack.Handle, idx int) (uint64, bool) {
	v, ok := h.Get(idx).(lua.LNumber)
	if !ok {
		return 0, false
	}
	f := float64(v)
	if f < 0 {
		return uint64(int64(f)), true
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64, true
	}
	return uint64(f), true
}

func ReadNumber(h *stack.Handle, idx int) (float64, bool) {
	v, ok := h.Get(idx).(lua.LNumber)
	if !ok {
		return 0, false
	}
	return float64(v), true
}

// ReadString requires a string tag; numbers are not coerced.
func ReadString(h *stack.Handle, idx int) (string, bool) {
	v, ok := h.Get(idx).(lua.LString)
	if !ok {
		return "", false
	}
	return string(v), true
}

func ReadBytes(h *stack.Handle, idx int) ([]byte, bool) {
	s, ok := ReadString(h, idx)
	if !ok {
		return nil, false
	}
	return []byte(s), true
}

// ReadValue returns the raw slot. It never fails.
func ReadValue(h *stack.Handle, idx int) lua.LValue {
	return h.Get(idx)
}
