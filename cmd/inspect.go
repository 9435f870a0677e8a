package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"grimm.is/aliasync/internal/audit"
	"grimm.is/aliasync/internal/config"
	"grimm.is/aliasync/internal/reconcile"
	"grimm.is/aliasync/internal/tui"
)

func planCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would change, without taking a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := RunPlan(cmd.Context(), g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
}

// RunPlan previews a run against the current remote inventory.
func RunPlan(ctx context.Context, g *globalOptions, stdout, stderr io.Writer) (*reconcile.Plan, error) {
	s, err := openSession(g, stderr)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	records, err := s.client.Search(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	plan := reconcile.BuildPlan(records, s.set)
	fmt.Fprint(stdout, tui.RenderPlan(plan))
	return plan, nil
}

func driftCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "List appliance aliases that are not declared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := RunDrift(cmd.Context(), g, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
}

// RunDrift reports orphaned aliases. Unlike a run, a failed listing is an
// error here rather than an empty report.
func RunDrift(ctx context.Context, g *globalOptions, stdout, stderr io.Writer) (reconcile.DriftReport, error) {
	s, err := openSession(g, stderr)
	if err != nil {
		return reconcile.DriftReport{}, err
	}
	defer s.Close()

	report, err := reconcile.NewDriftDetector(s.client, s.logger.WithComponent("drift")).Detect(ctx, s.set.Names())
	if err != nil {
		return report, err
	}
	fmt.Fprint(stdout, tui.RenderDrift(report))
	return report, nil
}

func validateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file without contacting the appliance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunValidate(g.configFile, cmd.OutOrStdout())
		},
	}
}

// RunValidate loads and validates the config at path.
func RunValidate(path string, stdout io.Writer) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	set, err := cfg.AliasSet()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	Printer.Fprintf(stdout, "Configuration valid!\n")
	Printer.Fprintf(stdout, "Appliance: %s\n", cfg.Appliance.URL)
	Printer.Fprintf(stdout, "Aliases: %d\n", set.Len())
	Printer.Fprintf(stdout, "Backups: %s (keep %d)\n", cfg.Backup.Dir, cfg.RetainBackups())
	return nil
}

func backupsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List stored backup artifacts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunBackups(g, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// RunBackups lists the artifacts in the configured backup directory.
func RunBackups(g *globalOptions, stdout, stderr io.Writer) error {
	s, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	infos, err := s.backups.List()
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, tui.RenderBackups(infos))
	return nil
}

type historyOptions struct {
	runID string
	alias string
	since time.Duration
	limit int
}

func historyCmd(g *globalOptions) *cobra.Command {
	var opts historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail of alias changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunHistory(g, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.runID, "run", "", "Only events of this run")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "Only events for this alias")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "Only events newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "Maximum number of events")
	return cmd
}

// RunHistory queries the audit trail.
func RunHistory(g *globalOptions, opts historyOptions, stdout, stderr io.Writer) error {
	s, err := openSession(g, stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.AuditDB == "off" {
		return fmt.Errorf("audit trail is disabled (audit_db = \"off\")")
	}
	if err := s.openAudit(); err != nil {
		return err
	}

	f := audit.Filter{RunID: opts.runID, Resource: opts.alias, Limit: opts.limit}
	if opts.since > 0 {
		f.Since = time.Now().Add(-opts.since)
	}
	events, err := s.audit.Query(f)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, tui.RenderHistory(events))
	return nil
}
