package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/luabind/runtime"
)

var plainRepl bool

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Call the sample library interactively",
	Long: `Repl opens a terminal UI listing the functions of the sample library.
When standard input is not a terminal, or with --plain, it reads one Lua
chunk per line instead and prints the values of expressions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !plainRepl && term.IsTerminal(int(os.Stdin.Fd())) {
			return runInteractive()
		}
		rt, _, err := newRuntime(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer rt.Close()
		return lineRepl(rt, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	replCmd.Flags().BoolVar(&plainRepl, "plain", false, "Read lines from standard input instead of opening the UI")
}

// lineRepl evaluates each line that parses as an expression list and
// runs every other line as a chunk. Errors are printed and do not stop the loop.
func lineRepl(rt *runtime.Runtime, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if isExpression(line) {
			vals, err := rt.Eval(line)
			switch {
			case err != nil:
				fmt.Fprintf(out, "error: %v\n", err)
			case len(vals) > 0:
				fmt.Fprintln(out, formatValues(vals))
			}
			continue
		}
		if err := rt.DoString(line); err != nil {
			log.Debug("repl line failed", zap.String("line", line), zap.Error(err))
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

func isExpression(line string) bool {
	_, err := parse.Parse(strings.NewReader("return "+line), "repl")
	return err == nil
}
