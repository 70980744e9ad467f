package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile  Phase = "compile"  // signature extraction
	PhaseEncode   Phase = "encode"   // Go to Lua
	PhaseDecode   Phase = "decode"   // Lua to Go
	PhaseStack    Phase = "stack"    // stack discipline
	PhaseDispatch Phase = "dispatch" // callable invocation
	PhaseRegister Phase = "register" // library registration
	PhaseRuntime  Phase = "runtime"  // state lifecycle, script execution
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindContract     Kind = "contract_violation"
	KindTypeMismatch Kind = "type_mismatch"
	KindUnsupported  Kind = "unsupported"
	KindNilPointer   Kind = "nil_pointer"
	KindEncoding     Kind = "encoding"
	KindFieldUnknown Kind = "field_unknown"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindRegistration Kind = "registration"
	KindPanic        Kind = "panic"
	KindClosed       Kind = "closed"
	KindExecution    Kind = "execution"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	LuaType string
	Detail  string
	Path    []string
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	hasType := e.GoType != "" || e.LuaType != ""
	if hasType {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.LuaType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", Lua type ")
			b.WriteString(e.LuaType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("Lua type ")
			b.WriteString(e.LuaType)
		}
	}

	if e.Detail != "" {
		if hasType {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on phase and kind only.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

func (b *Builder) LuaType(t string) *Builder {
	b.err.LuaType = t
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message; args are applied with fmt.Sprintf when present.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Contract reports a misuse of the stack protocol by the caller.
func Contract(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindContract,
		Detail: fmt.Sprintf(format, args...),
	}
}

func TypeMismatch(phase Phase, path []string, goType, luaType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		LuaType: luaType,
	}
}

func Unsupported(phase Phase, goType, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		GoType: goType,
		Detail: what,
	}
}

func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Encoding reports a failed wide string transcoding.
func Encoding(phase Phase, encoding string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEncoding,
		Detail: fmt.Sprintf("transcode via %s", encoding),
		Cause:  cause,
	}
}

func FieldUnknown(phase Phase, goType, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		GoType: goType,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

func Registration(library, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s.%s", library, name),
		Cause:  cause,
	}
}

// Panic wraps a value recovered from a callable.
func Panic(goType string, recovered any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindPanic,
		GoType: goType,
		Detail: fmt.Sprint(recovered),
		Value:  recovered,
	}
}

func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// Execution wraps a script load or run failure.
func Execution(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindExecution,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}
