// Package codec moves single scalar values between Go and a Lua stack slot.
//
// Integers of every width travel through one 64-bit path and floats through
// one float64 path; gopher-lua stores both as float64. Reads check the slot
// tag and never coerce (a numeric string is not a number). Strings are
// copied. Wide strings (WString, UTF-16) are transcoded to bytes using the
// handle's encoding: UTF-8 by default or any golang.org/x/text encoding.
// Go pointers travel as light user data: user data with no metatable that
// reads back as the same pointer.
//
//	codec.PushInteger(h, int16(-7))
//	v, ok := codec.Integer[int16](h, -1)
package codec
