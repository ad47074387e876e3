package cmd

import (
	"fmt"
	"os"

	"firmware-risk-scanner/config"

	"github.com/spf13/cobra"
)

var forceConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long:  `Write a configuration file with default values. The path defaults to ./.firmware-risk-scanner.yaml.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".firmware-risk-scanner.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !forceConfig {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.GenerateDefaultConfig(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing file")
}
