package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/output"
	"github.com/Aman-CERP/graphindex/pkg/indexsync"
)

func newEnsureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create missing indexes without writing documents",
		Long: `Check that every index the mapping needs exists, and create the missing ones.

A create the backend refuses (for example a race with another process) is
reported as create_failed but does not fail the command. Transport errors do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnsure(cmd, opts)
		},
	}
}

func runEnsure(cmd *cobra.Command, opts *rootOptions) error {
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

	report, err := synchronizer.EnsureIndexesExist(cmd.Context(), backend)
	out := output.New(cmd.OutOrStdout())
	printReport(out, report)
	if err != nil {
		return gierrors.New(gierrors.ErrCodeProvisionFailed, "failed to provision indexes", err)
	}

	if failed := report.Failed(); len(failed) > 0 {
		out.Warningf("%d index(es) could not be created: %v", len(failed), failed)
		return nil
	}
	out.Success("Indexes ready")
	return nil
}

func printReport(out *output.Writer, report indexsync.Report) {
	if len(report) == 0 {
		return
	}
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, report[name].String()})
	}
	out.Table([]string{"INDEX", "STATE"}, rows)
}
