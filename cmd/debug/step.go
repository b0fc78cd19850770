package debug

import (
	"github.com/spf13/cobra"
)

var stepCmd = &cobra.Command{
	Use:     "step",
	Short:   "execute one instruction",
	Aliases: []string{"s"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return CurrentSession.StepInstruction()
	},
}

func init() {
	debugRootCmd.AddCommand(stepCmd)
}
