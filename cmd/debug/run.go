package debug

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run [args...]",
	Short:   "start (or restart) the target program",
	Long:    `start the target program with the given arguments. A target that is already running is killed first.`,
	Aliases: []string{"r"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return CurrentSession.Run(args)
	},
}

func init() {
	debugRootCmd.AddCommand(runCmd)
}
