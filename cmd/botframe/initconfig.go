package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"botframe/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to the path given with -c, the
BOTFRAME_CONFIG_FILE environment variable, or ~/.botframe/config.json.
An existing file is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, created, err := config.InitDefaultConfig(configPath)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
		}
		return nil
	},
}
