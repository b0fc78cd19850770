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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/minidbg/cmd/debug"
	"github.com/hitzhangjie/minidbg/pkg/session"
	"github.com/hitzhangjie/minidbg/pkg/symbol"
	"github.com/hitzhangjie/minidbg/pkg/target"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach <pid>",
	Short: "debug a running process",
	Long:  `debug a running process. Only single-threaded targets are supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("invalid arguments")
		}

		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%s invalid pid", args[0])
		}

		dbp, err := target.AttachTracedProcess(pid)
		if err != nil {
			return err
		}

		bi, err := symbol.Analyze(fmt.Sprintf("/proc/%d/exe", pid))
		if err != nil {
			_ = dbp.Detach()
			dbp.Close()
			return fmt.Errorf("could not read debugging symbols of process %d: %v", pid, err)
		}

		s := session.New(dbp.Command, bi)
		s.Adopt(dbp, target.ATTACH)
		debug.CurrentSession = s

		debug.NewShell().AtExit(debug.Cleanup).Start()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
