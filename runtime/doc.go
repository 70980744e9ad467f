// Package runtime is a thin lifecycle wrapper around one Lua state.
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.WithEncoding("gbk"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	// Publish Go functions as a global table
//	rt.RegisterFunc("geo", "area", func(w, h float64) float64 { return w * h })
//
//	// Run a script
//	if err := rt.DoString(`print(geo.area(3, 4))`); err != nil {
//	    log.Fatal(err)
//	}
//
// # Loading Scripts
//
// DoString and DoFile compile and run at once. LoadString and LoadFile only
// compile; Run then executes the loaded chunk, as many times as needed.
// Every run shares the same globals:
//
//	rt.LoadString(`n = (n or 0) + 1`)
//	rt.Run()
//	rt.Run()
//	n, _ := runtime.Global(rt, "n", 0) // 2
//
// Eval returns the values of an expression list:
//
//	vals, err := rt.Eval(`geo.area(2, 5), "m2"`)
//
// # Host Libraries
//
// A Host exports its methods under its Namespace. Names are converted from
// PascalCase to snake_case; hosts implementing ExplicitRegistrar choose
// their own names. Registered hosts are published before the next script
// runs, or immediately with Bind. RegisterLibrary adds every entry of a
// dispatch.Library under its name.
//
// # Globals
//
// SetGlobal and Global marshal Go values with the stream package:
// structs, maps and slices become tables, struct pointers become light user
// data.
package runtime
