package luabind

import (
	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/runtime"
	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stream"
)

type (
	Runtime = runtime.Runtime
	Option  = runtime.Option
	Host    = runtime.Host

	// Marshaler writes a value through a Writer, usually as one table.
	Marshaler = stream.Marshaler
	// Unmarshaler reads a value back through a Reader.
	Unmarshaler = stream.Unmarshaler
	Writer      = stream.Writer
	Reader      = stream.Reader

	// WString is a UTF-16 string carried as a multi-byte Lua string.
	WString = codec.WString
)

// New opens a runtime with the standard libraries.
func New(opts ...Option) (*Runtime, error) {
	return runtime.New(opts...)
}

// Method binds a method expression such as (*T).Name; Lua passes the
// receiver as the first argument.
func Method(fn any) signature.MethodRef {
	return signature.Method(fn)
}

// Field binds an exported field of T. Called with one argument the
// accessor returns the field; with two it assigns the second.
func Field[T any](name string) signature.FieldRef {
	return signature.Field[T](name)
}

// Global reads global name into a T, starting from def.
func Global[T any](rt *Runtime, name string, def T) (T, bool) {
	return runtime.Global(rt, name, def)
}
