package runtime

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/dispatch"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
	"github.com/wippyai/luabind/stream"
)

// Options configures a Runtime.
type Options struct {
	Context context.Context
	Logger  *zap.Logger
	// Encoding names the multi-byte encoding used for wide strings, e.g.
	// "gbk". Empty means UTF-8.
	Encoding string
	// Strict makes contract violations panic.
	Strict bool
	// SkipOpenLibs leaves the standard libraries closed.
	SkipOpenLibs bool
}

type Option func(*Options)

func WithContext(ctx context.Context) Option {
	return func(o *Options) { o.Context = ctx }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithEncoding(name string) Option {
	return func(o *Options) { o.Encoding = name }
}

func WithStrict(strict bool) Option {
	return func(o *Options) { o.Strict = strict }
}

func WithoutStdLibs() Option {
	return func(o *Options) { o.SkipOpenLibs = true }
}

// Runtime owns one Lua state and the host functions published into it.
// It is not safe for concurrent use.
type Runtime struct {
	state   *lua.LState
	handle  *stack.Handle
	hosts   *HostRegistry
	chunk   *lua.LFunction
	lastErr error
	log     *zap.Logger
	bound   uint64
}

// New opens a Lua state with the standard libraries.
func New(opts ...Option) (*Runtime, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: o.SkipOpenLibs})
	rt, err := attach(L, o, true)
	if err != nil {
		L.Close()
		return nil, err
	}
	return rt, nil
}

// Attach wraps a state owned by the caller. Close leaves it open.
func Attach(L *lua.LState, opts ...Option) (*Runtime, error) {
	if L == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "state is nil")
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return attach(L, o, false)
}

func attach(L *lua.LState, o Options, owned bool) (*Runtime, error) {
	enc, err := codec.LookupEncoding(o.Encoding)
	if err != nil {
		return nil, err
	}
	log := o.Logger
	if log == nil {
		log = Logger()
	}
	if o.Context != nil {
		L.SetContext(o.Context)
	}

	hopts := []stack.Option{
		stack.WithEncoding(o.Encoding, enc),
		stack.WithStrict(o.Strict),
		stack.WithLogger(log),
	}
	var h *stack.Handle
	if owned {
		h = stack.New(L, hopts...)
	} else {
		h = stack.Attach(L, hopts...)
	}
	return &Runtime{
		state:  L,
		handle: h,
		hosts:  NewHostRegistry(),
		log:    log,
	}, nil
}

// Close runs finalizers of registered callables and closes an owned state.
func (r *Runtime) Close() {
	r.chunk = nil
	r.handle.Close()
}

func (r *Runtime) Handle() *stack.Handle { return r.handle }

func (r *Runtime) State() *lua.LState { return r.state }

func (r *Runtime) Hosts() *HostRegistry { return r.hosts }

// RegisterHost exports the methods of h under h.Namespace(). Method names
// are converted from PascalCase to snake_case (GetValue -> get_value).
// Registered hosts are published before the next script runs.
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

func (r *Runtime) RegisterFunc(library, name string, fn any) error {
	return r.hosts.RegisterFunc(library, name, fn)
}

// RegisterLibrary registers every entry of lib under lib.Name().
func (r *Runtime) RegisterLibrary(lib *dispatch.Library) error {
	for _, e := range lib.Entries() {
		if err := r.hosts.RegisterFunc(lib.Name(), e.Name, e.Callable); err != nil {
			return err
		}
	}
	return nil
}

// Bind publishes registered host libraries now.
func (r *Runtime) Bind() error {
	if err := r.ready(); err != nil {
		return err
	}
	version := r.hosts.Version()
	if version == r.bound {
		return nil
	}
	if err := r.hosts.Bind(r.handle); err != nil {
		return r.fail(errors.Wrap(errors.PhaseRuntime, errors.KindRegistration, err, "bind hosts"))
	}
	r.bound = version
	return nil
}

func (r *Runtime) ready() error {
	if r.handle.Closed() {
		return errors.Closed("runtime")
	}
	return nil
}

func (r *Runtime) fail(err error) error {
	r.lastErr = err
	r.log.Debug("lua runtime error", zap.Error(err))
	return err
}

// LastError returns the error of the most recent failed operation.
func (r *Runtime) LastError() error { return r.lastErr }

// DoString loads and runs src.
func (r *Runtime) DoString(src string) error {
	if err := r.Bind(); err != nil {
		return err
	}
	defer r.handle.Guard()()
	if err := r.state.DoString(src); err != nil {
		return r.fail(errors.Execution("do string", err))
	}
	return nil
}

// DoFile loads and runs the script at path.
func (r *Runtime) DoFile(path string) error {
	if err := r.Bind(); err != nil {
		return err
	}
	defer r.handle.Guard()()
	if err := r.state.DoFile(path); err != nil {
		return r.fail(errors.Execution("do file "+path, err))
	}
	return nil
}

// LoadString compiles src without running it. Run executes it.
func (r *Runtime) LoadString(src string) error {
	if err := r.ready(); err != nil {
		return err
	}
	fn, err := r.state.LoadString(src)
	if err != nil {
		return r.fail(errors.Execution("load string", err))
	}
	r.chunk = fn
	return nil
}

// LoadFile compiles the script at path without running it.
func (r *Runtime) LoadFile(path string) error {
	if err := r.ready(); err != nil {
		return err
	}
	fn, err := r.state.LoadFile(path)
	if err != nil {
		return r.fail(errors.Execution("load file "+path, err))
	}
	r.chunk = fn
	return nil
}

// Run executes the chunk compiled by the last LoadString or LoadFile. Every
// run shares the same globals: state left by one run is seen by the next.
func (r *Runtime) Run() error {
	if err := r.Bind(); err != nil {
		return err
	}
	if r.chunk == nil {
		return r.fail(errors.NotFound(errors.PhaseRuntime, "chunk", "loaded"))
	}
	defer r.handle.Guard()()
	r.state.Push(r.chunk)
	if err := r.state.PCall(0, lua.MultRet, nil); err != nil {
		return r.fail(errors.Execution("run", err))
	}
	return nil
}

// Eval evaluates the expression list expr and returns its values. The
// stack height is unchanged on return.
func (r *Runtime) Eval(expr string) ([]lua.LValue, error) {
	if err := r.Bind(); err != nil {
		return nil, err
	}
	fn, err := r.state.LoadString("return " + expr)
	if err != nil {
		return nil, r.fail(errors.Execution("eval", err))
	}
	top := r.handle.Top()
	defer r.handle.Guard()()
	r.state.Push(fn)
	if err := r.state.PCall(0, lua.MultRet, nil); err != nil {
		return nil, r.fail(errors.Execution("eval", err))
	}
	out := make([]lua.LValue, 0, r.handle.Top()-top)
	for i := top + 1; i <= r.handle.Top(); i++ {
		out = append(out, r.handle.Get(i))
	}
	return out, nil
}

// SetGlobal marshals v and stores it as global name.
func (r *Runtime) SetGlobal(name string, v any) error {
	if err := r.ready(); err != nil {
		return err
	}
	check := r.handle.Check("set global " + name)
	n, err := stream.Marshal(r.handle, v)
	if err != nil {
		r.handle.Pop(n)
		return r.fail(err)
	}
	r.state.SetGlobal(name, r.handle.Get(-1))
	r.handle.Pop(n)
	return check()
}

// Global reads global name into a T, starting from def.
func Global[T any](r *Runtime, name string, def T) (T, bool) {
	if r.handle.Closed() {
		return def, false
	}
	defer r.handle.Guard()()
	r.handle.Push(r.state.GetGlobal(name))
	return stream.UnmarshalOr(r.handle, -1, def)
}

// AllocUserData creates a full user data stored as global name. The stack
// height is unchanged.
func (r *Runtime) AllocUserData(name string) (*lua.LUserData, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "user data name is empty")
	}
	ud := r.state.NewUserData()
	r.state.SetGlobal(name, ud)
	return ud, nil
}

// StackCount returns the number of values on the stack.
func (r *Runtime) StackCount() int { return r.handle.Top() }

// Size returns the byte length of a string, the border length of a table,
// and 0 for every other value.
func (r *Runtime) Size(idx int) int {
	switch v := r.handle.Get(idx).(type) {
	case lua.LString:
		return len(v)
	case *lua.LTable:
		return v.Len()
	default:
		return 0
	}
}
