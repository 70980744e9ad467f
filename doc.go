// Package luabind exposes Go functions, methods and struct fields to Lua
// scripts running in gopher-lua, marshaling arguments and results through
// the Lua stack.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	luabind/             Root package with aliases for the common entry points
//	├── runtime/         Lua state lifecycle, script execution, host registry
//	├── dispatch/        Call records, Lua closures, libraries
//	├── signature/       Reflection over callables, cached per type
//	├── stream/          Output and input cursors over stack slots
//	├── codec/           Scalar, wide string and light pointer conversions
//	├── stack/           Stack handle, reader nesting, finalizers
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Register a function and call it from Lua:
//
//	rt, err := luabind.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	rt.RegisterFunc("calc", "add", func(a, b int) int { return a + b })
//	if err := rt.DoString(`print(calc.add(1, 2))`); err != nil {
//	    log.Fatal(err)
//	}
//
// # Values
//
// Booleans, numbers, strings and byte slices map to their Lua scalars.
// Structs, slices, arrays and maps travel as tables; struct fields use the
// lua tag for their key. Pointers to structs travel as light user data so
// that methods and field accessors can be bound to them:
//
//	rt.RegisterFunc("ui", "grow", luabind.Method((*Widget).Grow))
//	rt.RegisterFunc("ui", "width", luabind.Field[Widget]("Width"))
//
// Types implementing Marshaler and Unmarshaler control their own table
// layout through a Writer and a Reader.
//
// # Thread Safety
//
// A Runtime and the Lua state behind it must be used by one goroutine at a
// time. Signature extraction and the host registry are safe for concurrent
// use.
package luabind
