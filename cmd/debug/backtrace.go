package debug

import (
	"github.com/spf13/cobra"
)

var backtraceCmd = &cobra.Command{
	Use:     "bt",
	Short:   "print the call stack",
	Aliases: []string{"backtrace"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return CurrentSession.Backtrace()
	},
}

func init() {
	debugRootCmd.AddCommand(backtraceCmd)
}
