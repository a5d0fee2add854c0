package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tickwise/tickwise/internal/build"
)

var (
	// cfgFile parameter
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:           build.Slug,
		Short:         "Condition-gated execution scheduler for dependency graphs.",
		Long:          `Condition-gated execution scheduler for dependency graphs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and runs it. Called by
// main.main().
func Execute() error {
	return rootCmd.Execute()
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(layersCmd())
	rootCmd.AddCommand(versionCmd())
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(
			&cfgFile, "config", "",
			"config file (default is $XDG_CONFIG_HOME/tickwise/config.yaml)",
		)

	registerCommands()
}
