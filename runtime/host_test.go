package runtime

import (
	"testing"

	"github.com/wippyai/luabind/dispatch"
	"github.com/wippyai/luabind/errors"
)

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Get", "get"},
		{"GetValue", "get_value"},
		{"GetHTTPServer", "get_http_server"},
		{"GetURL", "get_url"},
		{"HTTPServer", "http_server"},
		{"ID", "id"},
		{"parseJSON", "parse_json"},
		{"Set2D", "set2_d"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := toSnakeCase(tt.in); got != tt.want {
				t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type mathHost struct {
	calls int
}

func (m *mathHost) Namespace() string { return "mathx" }

func (m *mathHost) AddInts(a, b int) int {
	m.calls++
	return a + b
}

func (m *mathHost) Hypot(a, b float64) float64 {
	return a*a + b*b
}

type explicitHost struct{}

func (explicitHost) Namespace() string { return "ex" }

func (explicitHost) Register() map[string]any {
	return map[string]any{
		"twice": dispatch.Func1(func(x int) int { return 2 * x }),
		"Hello": func() string { return "hi" },
	}
}

type badHost struct{}

func (badHost) Namespace() string { return "bad" }

func (badHost) Stream(chan int) {}

type anonymousHost struct{}

func (anonymousHost) Namespace() string { return "" }

func TestHostRegistry_RegisterHost(t *testing.T) {
	rt := newRuntime(t)
	host := &mathHost{}

	if err := rt.RegisterHost(host); err != nil {
		t.Fatalf("RegisterHost: %v", err)
	}
	if err := rt.RegisterHost(explicitHost{}); err != nil {
		t.Fatalf("RegisterHost explicit: %v", err)
	}

	if err := rt.DoString(`
		s = mathx.add_ints(2, 3)
		h = mathx.hypot(3, 4)
		d = ex.twice(21)
		g = ex.Hello()
	`); err != nil {
		t.Fatal(err)
	}

	if s, _ := Global(rt, "s", 0); s != 5 {
		t.Errorf("s = %d", s)
	}
	if h, _ := Global(rt, "h", 0.0); h != 25 {
		t.Errorf("h = %v", h)
	}
	if d, _ := Global(rt, "d", 0); d != 42 {
		t.Errorf("d = %d", d)
	}
	if g, _ := Global(rt, "g", ""); g != "hi" {
		t.Errorf("g = %q", g)
	}
	if host.calls != 1 {
		t.Errorf("calls = %d", host.calls)
	}
}

func TestHostRegistry_Rejects(t *testing.T) {
	r := NewHostRegistry()

	tests := []struct {
		name string
		err  error
		kind errors.Kind
	}{
		{"empty namespace", r.RegisterHost(anonymousHost{}), errors.KindInvalidInput},
		{"bad method", r.RegisterHost(badHost{}), errors.KindUnsupported},
		{"empty func namespace", r.RegisterFunc("", "f", func() {}), errors.KindInvalidInput},
		{"empty func name", r.RegisterFunc("lib", "", func() {}), errors.KindInvalidInput},
		{"not callable", r.RegisterFunc("lib", "f", 42), errors.KindRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("error %v is not %s", tt.err, tt.kind)
			}
		})
	}

	if r.Version() != 0 {
		t.Errorf("failed registrations changed the registry: version %d", r.Version())
	}
	if len(r.Libraries()) != 0 {
		t.Error("failed registrations left libraries behind")
	}
}

func TestHostRegistry_Libraries(t *testing.T) {
	r := NewHostRegistry()
	for _, reg := range []struct{ lib, name string }{
		{"b", "z"}, {"a", "y"}, {"b", "x"},
	} {
		if err := r.RegisterFunc(reg.lib, reg.name, func() {}); err != nil {
			t.Fatal(err)
		}
	}

	libs := r.Libraries()
	if len(libs) != 2 || libs[0].Name() != "a" || libs[1].Name() != "b" {
		t.Fatalf("libraries not sorted: %v", libs)
	}
	entries := libs[1].Entries()
	if len(entries) != 2 || entries[0].Name != "x" || entries[1].Name != "z" {
		t.Errorf("entries not sorted: %v", entries)
	}
	if r.Version() != 3 {
		t.Errorf("version = %d", r.Version())
	}
}

func TestRuntime_RebindsAfterRegistration(t *testing.T) {
	rt := newRuntime(t)
	if err := rt.RegisterFunc("lib", "one", func() int { return 1 }); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`a = lib.one()`); err != nil {
		t.Fatal(err)
	}
	if err := rt.RegisterFunc("lib", "two", func() int { return 2 }); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`b = lib.two() + lib.one()`); err != nil {
		t.Fatal(err)
	}
	if b, _ := Global(rt, "b", 0); b != 3 {
		t.Errorf("b = %d", b)
	}
}

type closingCounter struct {
	closed int
}

func (c *closingCounter) Call() int { return 5 }

func (c *closingCounter) Close() error {
	c.closed++
	return nil
}

func TestRuntime_RebindKeepsSingleRelease(t *testing.T) {
	rt := newRuntime(t)
	c := &closingCounter{}
	if err := rt.RegisterFunc("lib", "res", c); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`first = lib.res`); err != nil {
		t.Fatal(err)
	}
	if err := rt.RegisterFunc("lib", "other", func() int { return 1 }); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`same = first == lib.res; v = lib.res() + lib.other()`); err != nil {
		t.Fatal(err)
	}
	if same, _ := Global(rt, "same", false); !same {
		t.Error("rebind replaced an existing function")
	}
	if v, _ := Global(rt, "v", 0); v != 6 {
		t.Errorf("v = %d", v)
	}

	rt.Close()
	if c.closed != 1 {
		t.Errorf("Close called %d times, want 1", c.closed)
	}
}

func TestRuntime_RegisterLibrary(t *testing.T) {
	rt := newRuntime(t)
	lib := dispatch.NewLibrary("strs").
		Add("upper", func(s string) string { return s + "!" }).
		Add("size", dispatch.Func1(func(s string) int { return len(s) }))
	if err := rt.RegisterLibrary(lib); err != nil {
		t.Fatal(err)
	}
	if err := rt.DoString(`v = strs.upper("a") .. strs.size("abc")`); err != nil {
		t.Fatal(err)
	}
	if v, _ := Global(rt, "v", ""); v != "a!3" {
		t.Errorf("v = %q", v)
	}

	bad := dispatch.NewLibrary("bad").Add("ch", make(chan int))
	if err := rt.RegisterLibrary(bad); !errors.Is(err, errors.KindRegistration) {
		t.Errorf("RegisterLibrary(bad) = %v", err)
	}
}
