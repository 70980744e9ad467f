package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/luabind/dispatch"
	"github.com/wippyai/luabind/internal/config"
	"github.com/wippyai/luabind/internal/demo"
	"github.com/wippyai/luabind/runtime"
	"github.com/wippyai/luabind/stack"
)

var (
	logLevel   string
	configPath string
	encoding   string
	strict     bool

	cfg = config.Default()
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "luabind",
	Short: "Run Lua scripts against Go host libraries",
	Long: `luabind runs Lua scripts in a state where the sample library (LibTest by
default) is published, together with the objects pA and pB and any globals
from the configuration file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("encoding") {
			cfg.Encoding = encoding
		}
		if cmd.Flags().Changed("strict") {
			cfg.Strict = strict
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return setupLogger(cfg.LogLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "", "Multi-byte encoding of wide strings (e.g. gbk)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Turn contract violations into script errors")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(replCmd)
}

func setupLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if log, err = zc.Build(); err != nil {
		return err
	}
	stack.SetLogger(log)
	dispatch.SetLogger(log)
	runtime.SetLogger(log)
	return nil
}

// newRuntime opens a runtime with the sample library and configured
// globals installed.
func newRuntime(out io.Writer) (*runtime.Runtime, *demo.Fixture, error) {
	rt, err := runtime.New(append(cfg.Options(), runtime.WithLogger(log))...)
	if err != nil {
		return nil, nil, err
	}
	f, err := demo.Install(rt, cfg.Library, out)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	if err := cfg.Apply(rt); err != nil {
		rt.Close()
		return nil, nil, err
	}
	return rt, f, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
