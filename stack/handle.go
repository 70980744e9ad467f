package stack

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/wippyai/luabind/errors"
)

// Option configures a Handle.
type Option func(*Handle)

// WithEncoding sets the multi-byte encoding used for wide strings.
// A nil encoding means UTF-8.
func WithEncoding(name string, enc encoding.Encoding) Option {
	return func(h *Handle) {
		h.enc = enc
		h.encName = name
	}
}

// WithStrict makes contract violations panic instead of only being logged.
func WithStrict(strict bool) Option {
	return func(h *Handle) {
		h.strict = strict
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.log = l
		}
	}
}

// Handle is the single owner of a Lua state. Every stack mutation made by
// the codec, the cursors and the dispatcher goes through it.
type Handle struct {
	state      *lua.LState
	enc        encoding.Encoding
	log        *zap.Logger
	last       error
	encName    string
	root       *Handle
	readers    []int
	finalizers []func()
	owned      bool
	strict     bool
	closed     bool
}

// New wraps a state and takes ownership of it: Close closes the state.
func New(L *lua.LState, opts ...Option) *Handle {
	h := newHandle(L, opts)
	h.owned = true
	return h
}

// Attach wraps a state owned elsewhere. Close runs finalizers but leaves
// the state open.
func Attach(L *lua.LState, opts ...Option) *Handle {
	return newHandle(L, opts)
}

func newHandle(L *lua.LState, opts []Option) *Handle {
	h := &Handle{
		state:   L,
		log:     Logger(),
		encName: "utf-8",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// For returns a handle over L, the state of a call frame or coroutine
// entered from h. It shares h's options, logger and finalizers but tracks
// its own open readers, since each frame has its own stack.
func (h *Handle) For(L *lua.LState) *Handle {
	root := h.rootHandle()
	return &Handle{
		state:   L,
		root:    root,
		enc:     h.enc,
		encName: h.encName,
		log:     h.log,
		strict:  h.strict,
	}
}

func (h *Handle) rootHandle() *Handle {
	if h.root != nil {
		return h.root
	}
	return h
}

func (h *Handle) State() *lua.LState { return h.state }

func (h *Handle) Logger() *zap.Logger { return h.log }

func (h *Handle) Strict() bool { return h.strict }

// Encoding returns the wide string byte policy; nil means UTF-8.
func (h *Handle) Encoding() (string, encoding.Encoding) { return h.encName, h.enc }

// Context returns the state's context, or context.Background.
func (h *Handle) Context() context.Context {
	if ctx := h.state.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (h *Handle) Top() int { return h.state.GetTop() }

func (h *Handle) SetTop(n int) { h.state.SetTop(n) }

func (h *Handle) Push(v lua.LValue) { h.state.Push(v) }

func (h *Handle) Pop(n int) { h.state.Pop(n) }

// Get returns the value at idx; LNil when idx is beyond the top.
func (h *Handle) Get(idx int) lua.LValue { return h.state.Get(idx) }

// AbsIndex converts a relative index into an absolute one. Pseudo indices
// (registry, globals, upvalues) are returned unchanged.
func (h *Handle) AbsIndex(idx int) int {
	if idx > 0 || idx <= lua.RegistryIndex {
		return idx
	}
	if idx == 0 {
		return 0
	}
	return h.state.GetTop() + idx + 1
}

// Valid reports whether idx names an existing stack slot.
func (h *Handle) Valid(idx int) bool {
	abs := h.AbsIndex(idx)
	return abs >= 1 && abs <= h.state.GetTop()
}

// Guard returns a func that restores the current stack height.
func (h *Handle) Guard() func() {
	top := h.state.GetTop()
	return func() { h.state.SetTop(top) }
}

// Check returns a func that reports a violation when the stack height
// differs from the height at the time Check was called.
func (h *Handle) Check(what string) func() error {
	top := h.state.GetTop()
	return func() error {
		if now := h.state.GetTop(); now != top {
			return h.Violation(errors.Contract(errors.PhaseStack, "%s: stack height %d, expected %d", what, now, top))
		}
		return nil
	}
}

// Violation records a contract violation. In strict mode it panics with
// err, otherwise it logs and returns err.
func (h *Handle) Violation(err *errors.Error) error {
	h.last = err
	if h.root != nil {
		h.root.last = err
	}
	h.log.Warn("stack contract violation",
		zap.String("phase", string(err.Phase)),
		zap.String("detail", err.Detail),
		zap.Int("top", h.state.GetTop()))
	if h.strict {
		panic(err)
	}
	return err
}

// LastViolation returns the most recent contract violation, if any.
func (h *Handle) LastViolation() error { return h.last }

// Acquire registers an open reader anchored at the absolute slot and
// returns the nesting depth the reader must release. A nested reader must
// sit strictly above every open one; otherwise the depth is still
// registered and a violation is returned.
func (h *Handle) Acquire(slot int) (int, error) {
	var err error
	if n := len(h.readers); n > 0 && slot <= h.readers[n-1] {
		err = h.Violation(errors.Contract(errors.PhaseStack,
			"reader at slot %d nested under open reader at slot %d", slot, h.readers[n-1]))
	}
	h.readers = append(h.readers, slot)
	return len(h.readers), err
}

// Release closes the reader opened at depth. Readers must be released in
// reverse order of acquisition.
func (h *Handle) Release(depth int) error {
	if depth != len(h.readers) {
		return h.Violation(errors.Contract(errors.PhaseStack,
			"reader at depth %d released while %d readers are open", depth, len(h.readers)))
	}
	h.readers = h.readers[:depth-1]
	return nil
}

// OpenReaders reports how many readers are currently open.
func (h *Handle) OpenReaders() int { return len(h.readers) }

// OnClose registers fn to run when the handle closes. Finalizers run in
// reverse registration order.
func (h *Handle) OnClose(fn func()) {
	if h.root != nil {
		h.root.OnClose(fn)
		return
	}
	h.finalizers = append(h.finalizers, fn)
}

func (h *Handle) Closed() bool { return h.rootHandle().closed }

// Close runs registered finalizers and, when the handle owns the state,
// closes it. Close is idempotent and a no-op on handles returned by For.
func (h *Handle) Close() {
	if h.root != nil {
		return
	}
	if h.closed {
		return
	}
	h.closed = true
	for i := len(h.finalizers) - 1; i >= 0; i-- {
		h.runFinalizer(h.finalizers[i])
	}
	h.finalizers = nil
	if h.owned {
		h.state.Close()
	}
}

func (h *Handle) runFinalizer(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("finalizer panicked", zap.Any("recovered", r))
		}
	}()
	fn()
}
