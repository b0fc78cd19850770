/*
Copyright © 2021 NAME HERE <EMAIL ADDRESS>

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
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/minidbg/pkg/logflags"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "minidbg",
	Short: "minidbg is a tiny instruction-level debugger for linux/amd64",
	Long: `minidbg is a tiny instruction-level debugger for linux/amd64.

It launches or attaches to a target process under ptrace control, stops it
at breakpoints, and reconstructs stack traces from the debug symbols.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logFlag, err := cmd.Flags().GetBool("log")
		if err != nil {
			return err
		}
		logOutput, err := cmd.Flags().GetString("log-output")
		if err != nil {
			return err
		}
		return logflags.Setup(logFlag, logOutput)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.minidbg.yaml)")
	rootCmd.PersistentFlags().Bool("log", false, "enable diagnostic logging")
	rootCmd.PersistentFlags().String("log-output", "", "comma-separated list of layers to log (ptrace,session)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// search config in home directory with name ".minidbg" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigName(".minidbg")
	}

	viper.SetDefault("source.list-range", 5)
	viper.SetDefault("history.file", ".minidbg_history")

	viper.AutomaticEnv() // read in environment variables that match

	// if a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
