package dispatch

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/stack"
)

// fastPath returns a reflection-free invoker for common handler types, or
// nil. Arguments that do not match read as zero values, the same as the
// reflective path.
func fastPath(callable any) func(h *stack.Handle) int {
	switch fn := callable.(type) {
	case func():
		return func(h *stack.Handle) int {
			fn()
			return 0
		}
	case func() error:
		return func(h *stack.Handle) int {
			return pushError(h, fn())
		}
	case func() string:
		return func(h *stack.Handle) int {
			codec.PushString(h, fn())
			return 1
		}
	case func() bool:
		return func(h *stack.Handle) int {
			codec.PushBool(h, fn())
			return 1
		}
	case func() int:
		return func(h *stack.Handle) int {
			codec.PushInteger(h, fn())
			return 1
		}
	case func() float64:
		return func(h *stack.Handle) int {
			codec.PushNumber(h, fn())
			return 1
		}
	case func(string):
		return func(h *stack.Handle) int {
			s, _ := codec.ReadString(h, 1)
			fn(s)
			return 0
		}
	case func(string) error:
		return func(h *stack.Handle) int {
			s, _ := codec.ReadString(h, 1)
			return pushError(h, fn(s))
		}
	case func(string) string:
		return func(h *stack.Handle) int {
			s, _ := codec.ReadString(h, 1)
			codec.PushString(h, fn(s))
			return 1
		}
	case func(string, string) string:
		return func(h *stack.Handle) int {
			a, _ := codec.ReadString(h, 1)
			b, _ := codec.ReadString(h, 2)
			codec.PushString(h, fn(a, b))
			return 1
		}
	case func(bool) bool:
		return func(h *stack.Handle) int {
			b, _ := codec.ReadBool(h, 1)
			codec.PushBool(h, fn(b))
			return 1
		}
	case func(int) int:
		return func(h *stack.Handle) int {
			a, _ := codec.Integer[int](h, 1)
			codec.PushInteger(h, fn(a))
			return 1
		}
	case func(int, int) int:
		return func(h *stack.Handle) int {
			a, _ := codec.Integer[int](h, 1)
			b, _ := codec.Integer[int](h, 2)
			codec.PushInteger(h, fn(a, b))
			return 1
		}
	case func(float64) float64:
		return func(h *stack.Handle) int {
			a, _ := codec.ReadNumber(h, 1)
			codec.PushNumber(h, fn(a))
			return 1
		}
	case func(float64, float64) float64:
		return func(h *stack.Handle) int {
			a, _ := codec.ReadNumber(h, 1)
			b, _ := codec.ReadNumber(h, 2)
			codec.PushNumber(h, fn(a, b))
			return 1
		}
	}
	return nil
}

// pushError pushes nothing for a nil error and nil plus the message
// otherwise.
func pushError(h *stack.Handle, err error) int {
	if err == nil {
		return 0
	}
	h.Push(lua.LNil)
	h.Push(lua.LString(err.Error()))
	return 2
}
