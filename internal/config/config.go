// Package config loads the TOML configuration of the luabind command.
package config

import (
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/luabind/codec"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/runtime"
)

const DefaultLibrary = "LibTest"

// Config is the file format:
//
//	encoding = "gbk"
//	strict = true
//	log_level = "debug"
//	library = "LibTest"
//	scripts = ["init.lua"]
//
//	[globals]
//	title = "demo"
//	sizes = [1, 2, 3]
type Config struct {
	Globals  map[string]any `toml:"globals,omitempty"`
	Encoding string         `toml:"encoding,omitempty"`
	LogLevel string         `toml:"log_level,omitempty"`
	Library  string         `toml:"library,omitempty"`
	Scripts  []string       `toml:"scripts,omitempty"`
	Strict   bool           `toml:"strict,omitempty"`
}

func Default() *Config {
	return &Config{Library: DefaultLibrary}
}

// Parse decodes and validates a configuration.
func Parse(r io.Reader) (*Config, error) {
	out := Default()
	md, err := toml.NewDecoder(r).Decode(out)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode toml")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.FieldUnknown(errors.PhaseConfig, "config", undecoded[0].String())
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads the file at path. Relative script paths are resolved against
// the file's directory. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "open "+path)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i, s := range c.Scripts {
		if !filepath.IsAbs(s) {
			c.Scripts[i] = filepath.Join(dir, s)
		}
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := codec.LookupEncoding(c.Encoding); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("log_level").
				Cause(err).
				Detail("unknown log level %q", c.LogLevel).
				Build()
		}
	}
	if c.Library == "" {
		return errors.InvalidInput(errors.PhaseConfig, "library name cannot be empty")
	}
	return nil
}

// Options converts the configuration into runtime options.
func (c *Config) Options() []runtime.Option {
	return []runtime.Option{
		runtime.WithEncoding(c.Encoding),
		runtime.WithStrict(c.Strict),
	}
}

// Apply publishes the configured globals, in name order.
func (c *Config) Apply(rt *runtime.Runtime) error {
	names := make([]string, 0, len(c.Globals))
	for name := range c.Globals {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := rt.SetGlobal(name, c.Globals[name]); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindEncoding, err, "global "+name)
		}
	}
	return nil
}
