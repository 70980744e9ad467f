package dispatch

import (
	"go.uber.org/zap"

	"github.com/wippyai/luabind/stack"
	"github.com/wippyai/luabind/stream"
)

// Adapter is a callable whose invocation is generated at compile time by
// one of the FuncN helpers. Push accepts it like any other callable; only
// signature extraction uses reflection.
type Adapter struct {
	fn     any
	invoke func(h *stack.Handle) int
}

func arg[T any](h *stack.Handle, idx int) T {
	var zero T
	v, _ := stream.UnmarshalOr(h, idx, zero)
	return v
}

func result[R any](h *stack.Handle, v R) int {
	n, err := stream.Marshal(h, v)
	if err != nil {
		h.Logger().Debug("encode result", zap.Error(err))
	}
	return n
}

func Func0[R any](fn func() R) Adapter {
	return Adapter{fn: fn, invoke: func(h *stack.Handle) int {
		return result(h, fn())
	}}
}

func Func1[A, R any](fn func(A) R) Adapter {
	return Adapter{fn: fn, invoke: func(h *stack.Handle) int {
		return result(h, fn(arg[A](h, 1)))
	}}
}

func Func2[A, B, R any](fn func(A, B) R) Adapter {
	return Adapter{fn: fn, invoke: func(h *stack.Handle) int {
		return result(h, fn(arg[A](h, 1), arg[B](h, 2)))
	}}
}

func Func3[A, B, C, R any](fn func(A, B, C) R) Adapter {
	return Adapter{fn: fn, invoke: func(h *stack.Handle) int {
		return result(h, fn(arg[A](h, 1), arg[B](h, 2), arg[C](h, 3)))
	}}
}

// Proc1 adapts a function without results.
func Proc1[A any](fn func(A)) Adapter {
	return Adapter{fn: fn, invoke: func(h *stack.Handle) int {
		fn(arg[A](h, 1))
		return 0
	}}
}
