// Package dispatch exposes Go callables to Lua.
//
// Push turns a function, function pointer, method expression (via
// signature.Method), struct field (via signature.Field) or a value with a
// Call method into a Lua function. Arguments are read from stack slots
// 1..N with the stream package, results are written back with a Writer.
// Methods and fields take the receiver as light user data in slot 1.
//
//	err := dispatch.NewLibrary("geo").
//		Add("area", func(w, h float64) float64 { return w * h }).
//		Add("move", signature.Method((*Sprite).Move)).
//		Add("x", signature.Field[Sprite]("X")).
//		Register(h)
//
// Argument type mismatches leave the parameter at its zero value. A nil or
// foreign receiver skips the call and returns nothing. Panics raised by a
// callable are recovered and logged; a trailing non-nil error is returned
// to Lua as nil plus the error message.
//
// Callables implementing io.Closer are stored indirectly and closed exactly
// once: when the Lua function is collected, when __gc is invoked, or when
// the handle closes, whichever comes first.
package dispatch
