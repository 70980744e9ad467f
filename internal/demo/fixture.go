package demo

import (
	_ "embed"
	"io"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/runtime"
)

// Script exercises every entry of the sample library against pA and pB.
//
//go:embed script.lua
var Script string

// Fixture holds the two objects published as pA and pB.
type Fixture struct {
	A, B *TestClass
}

// Install registers the library under name and publishes pA, pB and the
// library name as LIBRARY.
func Install(rt *runtime.Runtime, name string, out io.Writer) (*Fixture, error) {
	if err := rt.RegisterLibrary(Library(name, out)); err != nil {
		return nil, err
	}
	f := &Fixture{
		A: &TestClass{Str: codec.Wide("LuaTestClass_a")},
		B: &TestClass{Str: codec.Wide("LuaTestClass_b")},
	}
	if err := rt.SetGlobal("LIBRARY", name); err != nil {
		return nil, err
	}
	if err := rt.SetGlobal("pA", f.A); err != nil {
		return nil, err
	}
	if err := rt.SetGlobal("pB", f.B); err != nil {
		return nil, err
	}
	return f, nil
}
