package debug

import (
	"os"

	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:     "exit",
	Short:   "end the debugging session",
	Aliases: []string{"quit", "q"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	Run: func(cmd *cobra.Command, args []string) {
		if !CurrentSession.Quit(CurrentShell.quitConfirm) {
			return
		}
		CurrentShell.Stop()
	},
}

func init() {
	debugRootCmd.AddCommand(exitCmd)
}

// Cleanup disposes of whatever the session still holds: the tracee is
// killed (or detached, for attached targets) and a binary built by the
// debug command is removed. Safe to call more than once.
func Cleanup() {
	if CurrentSession != nil {
		CurrentSession.Kill()
	}
	os.RemoveAll(BuildExecName)
}
