// Package cmd assembles the CLI. The root command only carries the
// persistent flags; the actual work lives in the subcommand packages.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renalscan/renalscan-go/cmd/serve"
	"github.com/renalscan/renalscan-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "renalscan",
		Short: "RenalScan-Go kidney scan dashboard",
		Long:  "Local dashboard for kidney scan diagnosis: upload scans or tabular measurements, review detection history.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		versionCommand(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		// command-line arguments take precedence over the config file
		return viper.Unmarshal(settings)
	}

	return rootCmd
}

// setupFlags binds the persistent flags to viper so they override the
// config file values.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		cobra.CheckErr(fmt.Errorf("error binding flags: %w", err))
	}
}

func versionCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("RenalScan-Go %s (built %s)\n", settings.Version, settings.BuildDate)
		},
	}
}
