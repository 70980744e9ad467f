package dispatch

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/signature"
	"github.com/wippyai/luabind/stack"
)

// Entry is one exposed name of a library.
type Entry struct {
	Name     string
	Callable any
}

// Library collects callables published together as one global table.
type Library struct {
	name    string
	entries []Entry
}

func NewLibrary(name string) *Library {
	return &Library{name: name}
}

func (l *Library) Name() string { return l.name }

// Add appends an entry. Names are bound in insertion order; a later entry
// with the same name replaces the earlier one in the table.
func (l *Library) Add(name string, callable any) *Library {
	l.entries = append(l.entries, Entry{Name: name, Callable: callable})
	return l
}

func (l *Library) Entries() []Entry {
	return l.entries
}

// Signatures returns the signature of every entry, in insertion order.
func (l *Library) Signatures() ([]*signature.Signature, error) {
	sigs := make([]*signature.Signature, 0, len(l.entries))
	for _, e := range l.entries {
		callable := e.Callable
		if a, ok := callable.(Adapter); ok {
			callable = a.fn
		}
		sig, err := signature.Of(callable)
		if err != nil {
			return nil, errors.Registration(l.name, e.Name, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Register builds the library table and publishes it as a global. The
// stack height is unchanged on return. The first entry that fails to
// register aborts and leaves the global untouched.
func (l *Library) Register(h *stack.Handle) error {
	if l.name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "library name is empty")
	}
	check := h.Check("register " + l.name)
	restore := h.Guard()

	L := h.State()
	tbl := L.NewTable()
	h.Push(tbl)
	for _, e := range l.entries {
		fn, err := Function(h, e.Callable)
		if err != nil {
			restore()
			Logger().Warn("registration failed",
				zap.String("library", l.name),
				zap.String("name", e.Name),
				zap.Error(err))
			return errors.Registration(l.name, e.Name, err)
		}
		tbl.RawSetString(e.Name, fn)
	}
	L.SetGlobal(l.name, tbl)
	h.Pop(1)

	if err := check(); err != nil {
		restore()
		return err
	}
	Logger().Debug("library registered", zap.String("library", l.name), zap.Int("functions", len(l.entries)))
	return nil
}

// Lookup returns the global library table name, or nil.
func Lookup(h *stack.Handle, name string) *lua.LTable {
	tbl, _ := h.State().GetGlobal(name).(*lua.LTable)
	return tbl
}
