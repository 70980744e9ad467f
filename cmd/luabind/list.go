package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/luabind/internal/demo"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the functions of the sample library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib := demo.Library(cfg.Library, nil)
		sigs, err := lib.Signatures()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		styled := isTerminal(out)

		width := 0
		for _, e := range lib.Entries() {
			width = max(width, len(lib.Name())+1+len(e.Name))
		}
		for i, e := range lib.Entries() {
			name := lib.Name() + "." + e.Name
			pad := strings.Repeat(" ", width-len(name)+2)
			shape, sig := fmt.Sprintf("%-8s", sigs[i].Shape), sigs[i].String()
			if styled {
				name, sig = funcStyle.Render(name), typeStyle.Render(sig)
				shape = helpStyle.Render(shape)
			}
			fmt.Fprintf(out, "%s%s%s %s\n", name, pad, shape, sig)
		}
		return nil
	},
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
