// Package cmd provides the CLI commands for graphindex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/profiling"
	"github.com/Aman-CERP/graphindex/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	debug     bool
	configDir string
	profile   profiling.Options

	profiler *profiling.Session
}

// NewRootCmd creates the root command for the graphindex CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "graphindex",
		Short: "Index a Neo4j graph into a full-text search backend",
		Long: `graphindex copies Neo4j nodes and relationships into full-text indexes
(Bleve, SQLite FTS5 or Weaviate) and searches them.

Each entity becomes one document keyed by its key property (default "uuid").
Indexes are named from a prefix: <prefix>-node and <prefix>-relationship, or a
single <prefix> with the shared mapping variant.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("graphindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.graphindex/logs/")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Directory containing .graphindex.yaml (default: current directory)")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if !opts.profile.Enabled() {
			return nil
		}
		s, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		opts.profiler = s
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if opts.profiler == nil {
			return nil
		}
		err := opts.profiler.Stop()
		opts.profiler = nil
		return err
	}

	cmd.AddCommand(newEnsureCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error with its code and hint.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		slog.Debug("command_failed", slog.String("error", err.Error()))
		_, _ = fmt.Fprint(root.ErrOrStderr(), gierrors.FormatForCLI(err))
	}
	return err
}
