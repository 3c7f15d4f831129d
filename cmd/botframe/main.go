// Package main is the entry point for the botframe CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"botframe/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "botframe",
	Short: "botframe - a command dispatch framework for chat bots",
	Long: `botframe resolves prefixed chat messages to commands, parses their
arguments with typed casters and interactive prompts, and runs them with
cooldowns, locks and inhibitors on Discord, Telegram or a local console.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
