package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tickwise/tickwise/internal/digraph"
	"github.com/tickwise/tickwise/internal/digraph/scheduler"
	"github.com/tickwise/tickwise/internal/logger"
	"github.com/tickwise/tickwise/internal/metrics"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] <schedule file>",
		Short: "Runs the schedule and prints each time step",
		Long:  `tickwise run [--max-steps=N] <schedule file>`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			maxSteps, err := cmd.Flags().GetInt("max-steps")
			if err != nil {
				return err
			}

			graph, err := digraph.Load(ctx, args[0])
			if err != nil {
				logger.Error(ctx, "Failed to load schedule", "error", err)
				return err
			}
			ctx = logger.WithValues(ctx, "schedule", graph.Name)

			sc, err := graph.Scheduler()
			if err != nil {
				logger.Error(ctx, "Failed to build scheduler", "error", err)
				return err
			}

			m := metrics.New()
			if cfg.MetricsAddr != "" {
				stop := serveMetrics(ctx, cfg.MetricsAddr, m)
				defer stop()
			}

			if err := runSchedule(ctx, sc, graph.Termination, m, maxSteps); err != nil {
				logger.Error(ctx, "Schedule run failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntP("max-steps", "n", 1000, "stop after this many time steps (0 for unbounded)")
	return cmd
}

func runSchedule(
	ctx context.Context,
	sc *scheduler.Scheduler,
	termination map[scheduler.TimeScale]scheduler.Condition,
	m *metrics.Metrics,
	maxSteps int,
) error {
	run, err := sc.Run(ctx, termination)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Trial started", "layers", len(sc.Queue()), "nodes", len(sc.Nodes()))

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	steps := 0
	lastPass := 0
	for {
		set, ok := run.Next(ctx)
		if !ok {
			break
		}
		steps++

		if pass := sc.Counters().Time(scheduler.ScaleTrial, scheduler.ScalePass); pass > lastPass {
			for ; lastPass < pass; lastPass++ {
				m.PassCompleted()
			}
		}
		m.TimeStepEmitted(nodeNames(set))

		if len(set) == 0 {
			faint.Printf("step %4d  (stalled pass)\n", steps)
		} else {
			bold.Printf("step %4d  %s\n", steps, set)
		}

		if maxSteps > 0 && steps >= maxSteps {
			logger.Warn(ctx, "Step limit reached before trial termination", "maxSteps", maxSteps)
			break
		}
	}
	if err := run.Err(); err != nil {
		return err
	}
	if run.Done() {
		m.TrialCompleted()
	}

	printSummary(sc)
	color.Green("Trial %s after %d time steps",
		lo.Ternary(run.Done(), "finished", "stopped"), steps)
	return nil
}

var summaryHeader = table.Row{"Node", "Executions", "Layer"}

func printSummary(sc *scheduler.Scheduler) {
	layerOf := map[scheduler.Node]int{}
	for i, layer := range sc.Queue() {
		for node := range layer {
			layerOf[node] = i
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(summaryHeader)
	for _, node := range sc.Nodes() {
		t.AppendRow(table.Row{
			string(node),
			sc.Counters().Total(scheduler.ScaleLife, node),
			layerOf[node],
		})
	}
	t.Render()
}

func nodeNames(set scheduler.NodeSet) []string {
	return lo.Map(set.Sorted(), func(n scheduler.Node, _ int) string {
		return string(n)
	})
}

// serveMetrics exposes the run metrics over HTTP until the returned stop
// function is called.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
