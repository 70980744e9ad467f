package codec

import (
	"golang.org/x/exp/constraints"

	"github.com/wippyai/luabind/stack"
)

// PushInteger widens any integer type to the 64-bit path.
func PushInteger[T constraints.Integer](h *stack.Handle, v T) {
	if isUnsigned[T]() {
		PushUint(h, uint64(v))
		return
	}
	PushInt(h, int64(v))
}

// Integer reads a number and narrows it to T with truncation.
func Integer[T constraints.Integer](h *stack.Handle, idx int) (T, bool) {
	if isUnsigned[T]() {
		u, ok := ReadUint(h, idx)
		return T(u), ok
	}
	i, ok := ReadInt(h, idx)
	return T(i), ok
}

func PushFloat[T constraints.Float](h *stack.Handle, v T) {
	PushNumber(h, float64(v))
}

func Float[T constraints.Float](h *stack.Handle, idx int) (T, bool) {
	f, ok := ReadNumber(h, idx)
	return T(f), ok
}

func isUnsigned[T constraints.Integer]() bool {
	var zero T
	return zero-1 > 0
}
