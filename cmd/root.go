// Package cmd wires the CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wildsight/wildsight-go/cmd/serve"
	"github.com/wildsight/wildsight-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wildsight",
		Short: "WildSight wildlife sighting detection and reporting service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		validateCommand(settings),
		configCommand(settings),
	)

	return rootCmd
}

// setupFlags binds the global flags onto the settings struct.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Server.Host, "host", settings.Server.Host, "Server listen host")
	cmd.PersistentFlags().IntVar(&settings.Server.Port, "port", settings.Server.Port, "Server listen port")
}

// validateCommand checks the configuration and reports issues without
// starting the server.
func validateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and model files",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := conf.ValidateSettings(settings)
			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
			}
			if !result.Valid {
				return fmt.Errorf("configuration is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

// configCommand writes a default configuration file.
func configCommand(settings *conf.Settings) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.SaveDefault(settings, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "Output path for the configuration file")
	return cmd
}
