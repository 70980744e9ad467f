// Package errors provides structured error types for luabind.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, Go and Lua type names, and a cause chain.
//
// Contract violations (misuse of the stack protocol) use KindContract. Data
// mismatches while reading script values are not errors at all: cursors only
// set their bad flag for those.
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("rect", "x").
//		GoType("int").
//		LuaType("string").
//		Detail("cannot read string as integer").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
