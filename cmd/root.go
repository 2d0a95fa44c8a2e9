package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frogwatch/frogwatch-go/cmd/serve"
	"github.com/frogwatch/frogwatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "frogwatch",
		Short: "FrogWatch observation backend CLI",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	serveCmd := serve.Command(settings)

	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		// Sync the settings struct with viper so command-line arguments
		// take precedence over the config file.
		conf.SyncViper(settings)
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
}
