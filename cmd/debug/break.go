package debug

import (
	"errors"

	"github.com/spf13/cobra"
)

var breakCmd = &cobra.Command{
	Use:   "break <locspec>",
	Short: "add a breakpoint",
	Long: `add a breakpoint at the location given by locspec.

Supported locspec forms:
- *0x4011a1     an instruction address
- 12            a source line number
- main          a function name`,
	Aliases: []string{"b", "breakpoint"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("invalid arguments")
		}
		return CurrentSession.Break(args[0])
	},
}

func init() {
	debugRootCmd.AddCommand(breakCmd)
}
