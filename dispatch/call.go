package dispatch

import (
	"reflect"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stack"
	"github.com/wippyai/luabind/stream"
)

// Push pushes callable onto the stack as a Lua function.
func Push(h *stack.Handle, callable any) error {
	fn, err := Function(h, callable)
	if err != nil {
		return err
	}
	h.Push(fn)
	return nil
}

// Function wraps callable as a Lua function without pushing it. The
// record lives in the function's first upvalue.
func Function(h *stack.Handle, callable any) (*lua.LFunction, error) {
	if h.Closed() {
		return nil, errors.Closed("handle")
	}
	rec, err := NewRecord(callable)
	if err != nil {
		return nil, err
	}
	ud := store(h, rec)
	return h.State().NewClosure(func(L *lua.LState) int {
		return call(h.For(L), L.Get(lua.UpvalueIndex(1)))
	}, ud), nil
}

var argsPool = sync.Pool{
	New: func() any {
		s := make([]reflect.Value, 0, 8)
		return &s
	},
}

func call(h *stack.Handle, slot lua.LValue) (n int) {
	ud, ok := slot.(*lua.LUserData)
	if !ok {
		return 0
	}

	var rec *Record
	switch v := ud.Value.(type) {
	case *Record:
		rec = v
	case *box:
		if !v.retain() {
			h.Logger().Warn("call to released callable", v.rec.fields()...)
			return 0
		}
		defer v.unref()
		rec = v.rec
	default:
		return 0
	}

	top := h.Top()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*errors.Error); ok && h.Strict() {
				panic(r)
			}
			err := errors.Panic(rec.sig.String(), r)
			h.Logger().Warn("callable panicked", append(rec.fields(), zap.Error(err))...)
			h.SetTop(top)
			n = 0
		}
	}()

	if rec.fast != nil {
		return rec.fast(h)
	}
	return rec.invoke(h, top)
}

func (r *Record) invoke(h *stack.Handle, top int) int {
	sig := r.sig

	fn := r.fn
	if sig.Shape == signature.ShapeFuncPointer {
		pv := reflect.ValueOf(r.callable)
		if pv.IsNil() || pv.Elem().IsNil() {
			h.Logger().Warn("call through nil function pointer", zap.String("signature", sig.String()))
			return 0
		}
		fn = pv.Elem()
	}

	argBase := 1
	var self reflect.Value
	if sig.Shape.HasInstance() {
		var ok bool
		self, ok = r.instance(h)
		if !ok {
			return 0
		}
		argBase = 2
	}

	if sig.Shape == signature.ShapeField {
		return r.accessField(h, self, top)
	}

	argsPtr := argsPool.Get().(*[]reflect.Value)
	args := (*argsPtr)[:0]
	defer func() {
		clear(args)
		*argsPtr = args[:0]
		argsPool.Put(argsPtr)
	}()

	if self.IsValid() {
		args = append(args, self)
	}
	if sig.HasContext {
		args = append(args, reflect.ValueOf(h.Context()))
	}
	for i, p := range sig.Params {
		arg := reflect.New(p).Elem()
		if !stream.UnmarshalValue(h, argBase+i, arg) {
			debugf("dispatch: %s argument %d is not a %s, using zero value", sig, i+1, p)
		}
		args = append(args, arg)
	}

	out := fn.Call(args)
	return pushResults(h, sig, out, top)
}

// instance reads the receiver from slot 1.
func (r *Record) instance(h *stack.Handle) (reflect.Value, bool) {
	want := reflect.PointerTo(r.sig.Owner)
	self, ok := codec.ReadPointerOf(h, 1, want)
	if !ok || self.IsNil() {
		err := errors.NilPointer(errors.PhaseDispatch, []string{"self"}, want.String())
		if ok {
			err.Detail = "receiver is nil"
		} else {
			err.LuaType = codec.KindOf(h.Get(1)).String()
			err.Detail = "receiver is not light user data of the owner type"
		}
		h.Logger().Warn("call skipped", zap.String("signature", r.sig.String()), zap.Error(err))
		if h.Strict() {
			_ = h.Violation(err)
		}
		return reflect.Value{}, false
	}
	return self, true
}

// accessField reads the field, or assigns it when slot 2 holds a value.
func (r *Record) accessField(h *stack.Handle, self reflect.Value, top int) int {
	field := self.Elem().FieldByIndex(r.sig.FieldIndex)
	if top >= 2 && h.Get(2) != lua.LNil {
		next := reflect.New(field.Type()).Elem()
		next.Set(field)
		if stream.UnmarshalValue(h, 2, next) {
			field.Set(next)
		} else {
			debugf("dispatch: %s assignment rejected", r.sig)
		}
		return 0
	}
	w := stream.NewWriter(h)
	w.Encode(field.Interface())
	if err := w.Err(); err != nil {
		h.Logger().Warn("encode field", zap.String("field", r.sig.FieldName), zap.Error(err))
	}
	return w.Pushed()
}

func pushResults(h *stack.Handle, sig *signature.Signature, out []reflect.Value, top int) int {
	if sig.HasError {
		if errv := out[len(out)-1]; !errv.IsNil() {
			h.SetTop(top)
			h.Push(lua.LNil)
			h.Push(lua.LString(errv.Interface().(error).Error()))
			return 2
		}
		out = out[:len(out)-1]
	}

	// One writer per result so a scalar never blocks a later table.
	n := 0
	for i, v := range out {
		w := stream.NewWriter(h)
		w.Encode(v.Interface())
		if err := w.Err(); err != nil {
			h.Logger().Warn("encode result",
				zap.String("signature", sig.String()), zap.Int("index", i), zap.Error(err))
		}
		if w.Pushed() == 0 {
			h.Push(lua.LNil)
			n++
			continue
		}
		n += w.Pushed()
	}
	return n
}
