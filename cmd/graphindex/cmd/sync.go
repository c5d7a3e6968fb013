package cmd

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/index"
	"github.com/Aman-CERP/graphindex/internal/output"
	"github.com/Aman-CERP/graphindex/internal/telemetry"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index every node and relationship from the graph",
		Long: `Provision the indexes, then read every node and relationship from Neo4j
and write one document per entity.

Entities excluded by sync.node_labels / sync.relationship_types are counted but
not written unless mapping.bypass_inclusion_policies is set. Entities whose
properties cannot be mapped are skipped and logged.`,
		Example: `  graphindex sync
  graphindex sync --metrics-file /var/lib/node_exporter/graphindex.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts, metricsFile)
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")

	return cmd
}

func runSync(cmd *cobra.Command, opts *rootOptions, metricsFile string) error {
	ctx := cmd.Context()

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	backend, release, err := a.openBackend()
	if err != nil {
		return err
	}
	defer release()

	mapper, err := a.newMapper()
	if err != nil {
		return err
	}
	synchronizer, err := a.newSynchronizer(mapper)
	if err != nil {
		return err
	}

	src, err := openSource(ctx, a.cfg.Graph)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	retry := gierrors.DefaultRetryConfig()
	retry.MaxRetries = a.cfg.Sync.MaxRetries

	metrics := telemetry.NewSyncMetrics()
	runner, err := index.NewRunner(index.RunnerDependencies{
		Backend:      backend,
		Source:       src,
		Mapper:       mapper,
		Synchronizer: synchronizer,
		Metrics:      metrics,
		Logger:       a.logger,
	}, index.RunnerConfig{
		BatchSize: a.cfg.Sync.BatchSize,
		Retry:     retry,
		Policy: index.InclusionPolicy{
			NodeLabels:        a.cfg.Sync.NodeLabels,
			RelationshipTypes: a.cfg.Sync.RelationshipTypes,
		},
	})
	if err != nil {
		return gierrors.InternalError("failed to create sync runner", err)
	}

	stats, runErr := runner.Run(ctx)

	if metricsFile != "" {
		if err := metrics.WriteToTextfile(metricsFile); err != nil {
			a.logger.Warn("metrics_write_failed", slog.String("path", metricsFile), slog.String("error", err.Error()))
		}
	}

	out := output.New(cmd.OutOrStdout())
	if stats != nil {
		printReport(out, stats.Indexes)
		out.Newline()
		printStats(out, stats)
	}

	if runErr != nil {
		if _, ok := gierrors.As(runErr); ok {
			return runErr
		}
		return gierrors.New(gierrors.ErrCodeSyncFailed, "sync failed", runErr)
	}

	if stats.Failed > 0 {
		out.Warningf("Sync finished with %d failed document(s) in %s", stats.Failed, stats.Duration.Round(time.Millisecond))
		return nil
	}
	out.Successf("Sync finished in %s", stats.Duration.Round(time.Millisecond))
	return nil
}

func printStats(out *output.Writer, stats *index.Stats) {
	row := func(name string, n int) []string { return []string{name, strconv.Itoa(n)} }
	out.Table([]string{"ENTITIES", "COUNT"}, [][]string{
		row("seen", stats.Seen),
		row("excluded", stats.Excluded),
		row("skipped", stats.Skipped),
		row("indexed", stats.Indexed),
		row("failed", stats.Failed),
	})
}
