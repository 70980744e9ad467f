package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/luabind/internal/demo"
)

var (
	evalChunks []string
	showState  bool
)

var runCmd = &cobra.Command{
	Use:   "run [SCRIPT...]",
	Short: "Run Lua scripts",
	Long: `Run executes the scripts listed in the configuration file, then the
scripts given as arguments, in one state. Without any script or -e chunk the
built-in demo script runs.`,
	RunE: runCommand,
}

func init() {
	runCmd.Flags().StringArrayVarP(&evalChunks, "exec", "e", nil, "Execute a Lua chunk before the scripts (repeatable)")
	runCmd.Flags().BoolVar(&showState, "state", false, "Print pA and pB after the run")
}

func runCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	rt, f, err := newRuntime(out)
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, chunk := range evalChunks {
		if err := rt.DoString(chunk); err != nil {
			return err
		}
	}

	scripts := append(slices.Clone(cfg.Scripts), args...)
	if len(scripts) == 0 && len(evalChunks) == 0 {
		log.Debug("running built-in demo script", zap.String("library", cfg.Library))
		if err := rt.DoString(demo.Script); err != nil {
			return err
		}
	}
	for _, path := range scripts {
		log.Debug("running script", zap.String("path", path))
		if err := rt.DoFile(path); err != nil {
			return err
		}
	}

	if showState {
		printObject(out, "pA", f.A)
		printObject(out, "pB", f.B)
	}
	return nil
}

func printObject(w io.Writer, name string, obj *demo.TestClass) {
	c := obj.Component
	fmt.Fprintf(w, "%s: Str=%q Component={%q, %s, %g}\n", name, obj.Str.String(), c.A, c.B, c.C)
}
