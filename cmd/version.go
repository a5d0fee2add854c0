package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickwise/tickwise/internal/build"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Displays the binary version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(build.Version)
		},
	}
}
