package debug

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "print source around the current position",
	Aliases: []string{"l"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupSource,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rng := viper.GetInt("source.list-range")
		if rng <= 0 {
			rng = 5
		}
		return CurrentSession.ListSource(rng)
	},
}

func init() {
	debugRootCmd.AddCommand(listCmd)
}
