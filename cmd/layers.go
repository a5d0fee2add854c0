package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tickwise/tickwise/internal/digraph"
	"github.com/tickwise/tickwise/internal/digraph/scheduler"
	"github.com/tickwise/tickwise/internal/logger"
)

func layersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers <schedule file>",
		Short: "Prints the consideration queue derived from the dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := setup(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			graph, err := digraph.Load(ctx, args[0])
			if err != nil {
				logger.Error(ctx, "Failed to load schedule", "error", err)
				return err
			}

			sc, err := graph.Scheduler()
			if err != nil {
				logger.Error(ctx, "Failed to build scheduler", "error", err)
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Layer", "Nodes"})
			for i, layer := range sc.Queue() {
				names := lo.Map(layer.Sorted(), func(n scheduler.Node, _ int) string {
					return string(n)
				})
				t.AppendRow(table.Row{i, strings.Join(names, ", ")})
			}
			t.Render()
			return nil
		},
	}
}
