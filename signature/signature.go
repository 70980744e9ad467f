package signature

import (
	"context"
	"reflect"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stream"
)

// Shape selects how a callable is invoked.
type Shape uint8

const (
	ShapeFunction Shape = iota
	ShapeFuncPointer
	ShapeMethod
	ShapeField
	ShapeObject
)

var shapeNames = [...]string{
	ShapeFunction:    "function",
	ShapeFuncPointer: "function pointer",
	ShapeMethod:      "method",
	ShapeField:       "field",
	ShapeObject:      "object",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// HasInstance reports whether argument 1 carries the owner pointer.
func (s Shape) HasInstance() bool {
	return s == ShapeMethod || s == ShapeField
}

// Signature describes a callable. It is computed once per callable type.
type Signature struct {
	// Type is the type of the registered value.
	Type reflect.Type
	// Func is the function type actually invoked; nil for fields.
	Func reflect.Type
	// Owner is the struct type for methods and fields.
	Owner reflect.Type
	// Params are the marshaled parameters. They exclude the receiver and a
	// leading context.Context.
	Params []reflect.Type
	// Results exclude a trailing error.
	Results    []reflect.Type
	FieldIndex []int
	FieldName  string
	Shape      Shape
	HasContext bool
	HasError   bool
}

func (s *Signature) String() string {
	var b strings.Builder
	if s.Shape.HasInstance() {
		b.WriteString("(*")
		b.WriteString(s.Owner.String())
		b.WriteString(") ")
	}
	if s.Shape == ShapeField {
		b.WriteString(s.FieldName)
		b.WriteByte(' ')
		b.WriteString(s.Results[0].String())
		return b.String()
	}
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	results := s.Results
	if s.HasError {
		results = append(results[:len(results):len(results)], errorType)
	}
	switch len(results) {
	case 0:
	case 1:
		b.WriteByte(' ')
		b.WriteString(results[0].String())
	default:
		b.WriteString(" (")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// MethodRef marks a function whose first parameter is the owner pointer,
// typically a method expression such as (*T).Name.
type MethodRef struct {
	Fn any
}

// Method registers fn with method shape.
func Method(fn any) MethodRef {
	return MethodRef{Fn: fn}
}

// FieldRef names an exported struct field exposed as an accessor.
type FieldRef struct {
	Owner reflect.Type
	Name  string
}

// Field exposes field name of struct T.
func Field[T any](name string) FieldRef {
	return FieldRef{Owner: reflect.TypeFor[T](), Name: name}
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	lvalueType  = reflect.TypeFor[lua.LValue]()

	marshalerType   = reflect.TypeFor[stream.Marshaler]()
	unmarshalerType = reflect.TypeFor[stream.Unmarshaler]()
)

type cacheKey struct {
	t     reflect.Type
	field string
}

var cache sync.Map // cacheKey -> *Signature

// Of extracts the signature of callable. Supported callables are funcs,
// pointers to funcs, MethodRef, FieldRef and values with a Call method.
func Of(callable any) (*Signature, error) {
	if callable == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "callable is nil")
	}

	key := cacheKey{t: reflect.TypeOf(callable)}
	switch c := callable.(type) {
	case MethodRef:
		if c.Fn == nil {
			return nil, errors.InvalidInput(errors.PhaseCompile, "method is nil")
		}
		key.t = reflect.TypeOf(c.Fn)
		key.field = "\x00method"
	case FieldRef:
		if c.Owner == nil {
			return nil, errors.InvalidInput(errors.PhaseCompile, "field owner is nil")
		}
		key.t = c.Owner
		key.field = c.Name
	}

	if cached, ok := cache.Load(key); ok {
		return cached.(*Signature), nil
	}

	sig, err := extract(callable)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(key, sig)
	return actual.(*Signature), nil
}

func extract(callable any) (*Signature, error) {
	switch c := callable.(type) {
	case MethodRef:
		return extractMethod(reflect.TypeOf(c.Fn))
	case FieldRef:
		return extractField(c)
	}

	t := reflect.TypeOf(callable)
	switch {
	case t.Kind() == reflect.Func:
		return extractFunc(t, t, ShapeFunction)
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Func:
		return extractFunc(t, t.Elem(), ShapeFuncPointer)
	}

	if _, ok := t.MethodByName("Call"); ok {
		// The bound method value excludes the receiver.
		bound := reflect.ValueOf(callable).MethodByName("Call").Type()
		return extractFunc(t, bound, ShapeObject)
	}

	return nil, errors.Unsupported(errors.PhaseCompile, t.String(), "not a function, method, field or object with a Call method")
}

func extractFunc(t, fn reflect.Type, shape Shape) (*Signature, error) {
	sig := &Signature{Type: t, Func: fn, Shape: shape}
	if err := sig.fill(fn, 0); err != nil {
		return nil, err
	}
	return sig, nil
}

func extractMethod(fn reflect.Type) (*Signature, error) {
	if fn.Kind() != reflect.Func {
		return nil, errors.Unsupported(errors.PhaseCompile, fn.String(), "method must be a function")
	}
	if fn.NumIn() == 0 || fn.In(0).Kind() != reflect.Pointer || fn.In(0).Elem().Kind() != reflect.Struct {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			GoType(fn.String()).
			Detail("method must take a pointer to a struct as its first parameter").
			Build()
	}
	sig := &Signature{
		Type:  fn,
		Func:  fn,
		Owner: fn.In(0).Elem(),
		Shape: ShapeMethod,
	}
	if err := sig.fill(fn, 1); err != nil {
		return nil, err
	}
	return sig, nil
}

func extractField(ref FieldRef) (*Signature, error) {
	owner := ref.Owner
	if owner.Kind() != reflect.Struct {
		return nil, errors.Unsupported(errors.PhaseCompile, owner.String(), "field owner must be a struct")
	}
	sf, ok := owner.FieldByName(ref.Name)
	if !ok || !sf.IsExported() {
		return nil, errors.FieldUnknown(errors.PhaseCompile, owner.String(), ref.Name)
	}
	if err := checkType(sf.Type, []string{ref.Name}); err != nil {
		return nil, err
	}
	return &Signature{
		Type:       owner,
		Owner:      owner,
		Results:    []reflect.Type{sf.Type},
		FieldIndex: sf.Index,
		FieldName:  ref.Name,
		Shape:      ShapeField,
	}, nil
}

// fill records parameters from index skip onwards and all results.
func (s *Signature) fill(fn reflect.Type, skip int) error {
	if fn.IsVariadic() {
		return errors.Unsupported(errors.PhaseCompile, fn.String(), "variadic functions")
	}

	start := skip
	if fn.NumIn() > start && fn.In(start) == contextType {
		s.HasContext = true
		start++
	}
	for i := start; i < fn.NumIn(); i++ {
		p := fn.In(i)
		if err := checkParam(p, i); err != nil {
			return err
		}
		s.Params = append(s.Params, p)
	}

	numOut := fn.NumOut()
	if numOut > 0 && fn.Out(numOut-1) == errorType {
		s.HasError = true
		numOut--
	}
	for i := range numOut {
		r := fn.Out(i)
		if err := checkType(r, []string{"result", strconv.Itoa(i)}); err != nil {
			return err
		}
		s.Results = append(s.Results, r)
	}
	return nil
}

// checkParam rejects pointers other than struct pointers: a *int or **T
// would be a mutable alias that cannot be written back to the script.
func checkParam(t reflect.Type, i int) error {
	path := []string{"param", strconv.Itoa(i)}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() != reflect.Struct {
		return errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			GoType(t.String()).
			Detail("pointer parameters must point to structs").
			Build()
	}
	c := checker{seen: map[reflect.Type]bool{}, input: true}
	return c.check(t, path)
}

func checkType(t reflect.Type, path []string) error {
	c := checker{seen: map[reflect.Type]bool{}}
	return c.check(t, path)
}

// checker walks a type once. Input types must also be decodable, which
// rules out error values.
type checker struct {
	seen  map[reflect.Type]bool
	input bool
}

func (c *checker) check(t reflect.Type, path []string) error {
	if c.seen[t] {
		return nil
	}
	c.seen[t] = true

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			GoType(t.String()).
			Detail("%s values cannot cross into Lua", t.Kind()).
			Build()
	case reflect.Interface:
		if c.input && t == errorType {
			return errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Path(path...).
				GoType(t.String()).
				Detail("error values cannot be read from Lua").
				Build()
		}
		if t.NumMethod() != 0 && t != lvalueType && t != errorType {
			return errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Path(path...).
				GoType(t.String()).
				Detail("only any, error and lua.LValue interfaces are supported").
				Build()
		}
	case reflect.Slice, reflect.Array:
		return c.check(t.Elem(), append(path[:len(path):len(path)], "[]"))
	case reflect.Pointer:
		return c.check(t.Elem(), path)
	case reflect.Struct:
		if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(unmarshalerType) {
			return nil
		}
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("lua") == "-" {
				continue
			}
			if err := c.check(f.Type, append(path[:len(path):len(path)], f.Name)); err != nil {
				return err
			}
		}
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return errors.Unsupported(errors.PhaseCompile, t.String(), "map keys must be strings or integers")
		}
		return c.check(t.Elem(), append(path[:len(path):len(path)], "{}"))
	}
	return nil
}
