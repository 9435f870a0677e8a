// Package cmd implements the aliasync command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"grimm.is/aliasync/internal/brand"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/i18n"
	"grimm.is/aliasync/internal/reconcile"
)

// Printer formats user-facing output for the operator's locale.
var Printer = i18n.NewCLIPrinter()

// Exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 2
)

type globalOptions struct {
	configFile string
	logLevel   string
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to the process exit status. A run declined
// at the approval gate is not a failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case reconcile.IsCancelled(err):
		return ExitCancelled
	default:
		return ExitFailure
	}
}

// NewRootCmd builds the command tree. Invoked without a subcommand it performs
// one reconciliation run.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	var apply applyOptions

	cmd := &cobra.Command{
		Use:           brand.BinaryName,
		Short:         "Reconcile declared port aliases onto a firewall appliance",
		Long:          brand.Description,
		Version:       brand.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := RunApply(cmd.Context(), g, apply, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", brand.DefaultConfigPath(), "Configuration file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	apply.bind(cmd)

	cmd.AddCommand(
		applyCmd(g),
		planCmd(g),
		driftCmd(g),
		validateCmd(g),
		backupsCmd(g),
		historyCmd(g),
	)
	return cmd
}

func printError(w io.Writer, err error) {
	if reconcile.IsCancelled(err) {
		Printer.Fprintf(w, "Cancelled: %v\n", err)
	} else {
		Printer.Fprintf(w, "Error: %v\n", err)
	}
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
}
