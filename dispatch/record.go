package dispatch

import (
	"io"
	"reflect"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stack"
)

// Storage tells how a record is held by its user data slot.
type Storage uint8

const (
	// StorageInline holds the record directly; nothing runs on collection.
	StorageInline Storage = iota
	// StorageIndirect holds a reference-counted box whose callable is
	// closed when the last reference is dropped.
	StorageIndirect
)

var storageNames = [...]string{
	StorageInline:   "inline",
	StorageIndirect: "indirect",
}

func (s Storage) String() string {
	if int(s) < len(storageNames) {
		return storageNames[s]
	}
	return "unknown"
}

// Record is a registered callable together with its signature. Each record
// carries a random ID that tags its log entries.
type Record struct {
	id       uuid.UUID
	sig      *signature.Signature
	callable any
	fn       reflect.Value // nil for fields and pointer shapes resolved per call
	fast     func(h *stack.Handle) int
	storage  Storage
}

// NewRecord extracts the signature of callable and prepares it for
// invocation. It does not touch any Lua state.
func NewRecord(callable any) (*Record, error) {
	if a, ok := callable.(Adapter); ok {
		sig, err := signature.Of(a.fn)
		if err != nil {
			return nil, err
		}
		return &Record{id: uuid.New(), sig: sig, callable: a.fn, fast: a.invoke, storage: storageOf(a.fn)}, nil
	}

	sig, err := signature.Of(callable)
	if err != nil {
		return nil, err
	}
	rec := &Record{id: uuid.New(), sig: sig, callable: callable, storage: storageOf(callable)}

	switch sig.Shape {
	case signature.ShapeFunction:
		rec.fn = reflect.ValueOf(callable)
		rec.fast = fastPath(callable)
	case signature.ShapeMethod:
		rec.fn = reflect.ValueOf(callable.(signature.MethodRef).Fn)
	case signature.ShapeObject:
		rec.fn = reflect.ValueOf(callable).MethodByName("Call")
	}
	return rec, nil
}

func storageOf(callable any) Storage {
	if _, ok := callable.(io.Closer); ok {
		return StorageIndirect
	}
	return StorageInline
}

func (r *Record) ID() uuid.UUID { return r.id }

func (r *Record) Signature() *signature.Signature { return r.sig }

// fields identifies the record in log entries.
func (r *Record) fields() []zap.Field {
	return []zap.Field{zap.Stringer("record", r.id), zap.String("signature", r.sig.String())}
}

func (r *Record) Storage() Storage { return r.storage }

// Destroy closes the callable of an indirect record. Inline records have
// nothing to release.
func (r *Record) Destroy() error {
	if c, ok := r.callable.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// box is the indirect storage for a record. The user data slot owns one
// reference and each running call holds another.
type box struct {
	rec     *Record
	log     *zap.Logger
	refs    atomic.Int32
	dropped atomic.Bool
}

func newBox(rec *Record, log *zap.Logger) *box {
	b := &box{rec: rec, log: log}
	b.refs.Store(1)
	return b
}

// retain takes a call reference. It fails once the box is released.
func (b *box) retain() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (b *box) unref() {
	if b.refs.Add(-1) == 0 {
		if err := b.rec.Destroy(); err != nil {
			b.log.Warn("close callable", append(b.rec.fields(), zap.Error(err))...)
			return
		}
		b.log.Debug("callable released", b.rec.fields()...)
	}
}

// drop releases the slot reference. Only the first call has an effect.
func (b *box) drop() {
	if b.dropped.CompareAndSwap(false, true) {
		b.unref()
	}
}

// gcMetatableName names the metatable shared by every indirect record.
const gcMetatableName = "luabind.dispatch.record"

// gcMetatable returns the shared metatable, creating it on first use.
func gcMetatable(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(gcMetatableName)
	if mt.RawGetString("__gc") == lua.LNil {
		mt.RawSetString("__gc", L.NewFunction(collect))
		mt.RawSetString("__metatable", lua.LFalse)
	}
	return mt
}

func collect(L *lua.LState) int {
	if ud, ok := L.Get(1).(*lua.LUserData); ok {
		if b, ok := ud.Value.(*box); ok {
			b.drop()
		}
	}
	return 0
}

// store places rec in a new user data slot.
func store(h *stack.Handle, rec *Record) *lua.LUserData {
	L := h.State()
	ud := L.NewUserData()
	if rec.storage == StorageInline {
		ud.Value = rec
		return ud
	}

	b := newBox(rec, h.Logger())
	ud.Value = b
	ud.Metatable = gcMetatable(L)
	runtime.AddCleanup(ud, (*box).drop, b)
	h.OnClose(b.drop)
	return ud
}
