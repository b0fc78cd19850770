/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/minidbg/cmd/debug"
	"github.com/hitzhangjie/minidbg/pkg/session"
	"github.com/hitzhangjie/minidbg/pkg/symbol"
	"github.com/hitzhangjie/minidbg/pkg/target"
)

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec <prog>",
	Short: "debug an executable",
	Long: `debug an executable.

The debug symbols are loaded and the interactive shell started; the target
process itself is launched by the run command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("invalid arguments")
		}
		return startSession(args[0], target.EXEC)
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}

// startSession loads debug symbols for prog and runs the interactive debug
// shell until the user quits.
func startSession(prog string, kind target.Kind) error {
	bi, err := symbol.Analyze(prog)
	if err != nil {
		return fmt.Errorf("could not read debugging symbols from %s: %v", prog, err)
	}

	s := session.New(prog, bi)
	s.SetKind(kind)
	debug.CurrentSession = s

	debug.NewShell().AtExit(debug.Cleanup).Start()
	return nil
}
