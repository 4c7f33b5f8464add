package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pagewatch/internal/app"
	"pagewatch/internal/monitor"
)

// errAlertRaised makes the check command exit non-zero without printing an error.
var errAlertRaised = errors.New("alert raised")

// NewCheckCmd creates the check command: one check cycle, then exit.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check and exit",
		Long: `Run exactly one check cycle and print the decision.

The exit status is 0 when the marker holds the expected value and 2 when an
alert was raised. With --dry-run the alert is printed but never sent.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
	cmd.Flags().Bool("dry-run", false, "do not contact the chat system")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}
	if opts.DryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return err
	}
	// keep stdout for the decision
	opts.LogOutput = cmd.ErrOrStderr()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	res := a.CheckOnce(ctx)
	if res.Decision.Kind == monitor.KindCanceled {
		return fmt.Errorf("check canceled: %w", res.Err)
	}
	printResult(cmd, res)
	if res.Decision.Alert() {
		return errAlertRaised
	}
	return nil
}

func printResult(cmd *cobra.Command, res monitor.Result) {
	out := cmd.OutOrStdout()
	switch res.Decision.Kind {
	case monitor.KindOK:
		fmt.Fprintf(out, "OK: %s is %q on %s\n", res.Target.Attribute, res.Observation.Value, res.Target.URL)
	default:
		fmt.Fprintln(out, res.Decision.Message)
	}
	if res.NotifyErr != nil {
		fmt.Fprintf(out, "notify failed: %v\n", res.NotifyErr)
	}
}
