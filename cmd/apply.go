package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"grimm.is/aliasync/internal/reconcile"
	"grimm.is/aliasync/internal/tui"
)

type applyOptions struct {
	yes bool

	// approver replaces the approval gate; set by tests.
	approver reconcile.Approver
}

func (o *applyOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "Apply without asking for confirmation")
}

func applyCmd(g *globalOptions) *cobra.Command {
	var opts applyOptions
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Back up, confirm, and reconcile the declared aliases (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := RunApply(cmd.Context(), g, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	opts.bind(cmd)
	return cmd
}

// RunApply performs one reconciliation run and prints its summary. The
// returned error is non-nil only when the run aborted before any change.
func RunApply(ctx context.Context, g *globalOptions, opts applyOptions, stdout, stderr io.Writer) (*reconcile.Summary, error) {
	s, err := openSession(g, stderr)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.openAudit(); err != nil {
		// Audit failures are never fatal.
		s.logger.Warn("audit trail unavailable", "error", err)
	}

	approver := opts.approver
	switch {
	case approver != nil:
	case opts.yes:
		approver = reconcile.AutoApprove
	default:
		confirm := tui.NewConfirm()
		confirm.Out = stderr
		approver = confirm
	}

	ropts := reconcile.Options{
		Store:    s.client,
		Backups:  s.backups,
		Approver: approver,
		Metrics:  s.metrics,
		Logger:   s.logger,
	}
	if s.audit != nil {
		ropts.Audit = s.audit
	}

	sum, err := reconcile.NewOrchestrator(ropts).Run(ctx, s.set)
	s.writeMetrics()
	if err != nil {
		return sum, err
	}

	fmt.Fprint(stdout, tui.RenderSummary(sum))
	if n := len(sum.Failed()); n > 0 {
		Printer.Fprintf(stdout, "%d of %d aliases could not be reconciled\n", n, s.set.Len())
	}
	return sum, nil
}
