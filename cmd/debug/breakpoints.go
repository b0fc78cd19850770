package debug

import (
	"github.com/spf13/cobra"
)

var breaksCmd = &cobra.Command{
	Use:     "breaks",
	Short:   "list all breakpoints",
	Aliases: []string{"bs", "breakpoints"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	Run: func(cmd *cobra.Command, args []string) {
		CurrentSession.ListBreakpoints()
	},
}

func init() {
	debugRootCmd.AddCommand(breaksCmd)
}
