package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"costledger/internal/ledger"
)

type contextKey struct{}

func newRootCmd(out io.Writer, build appBuilder) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:   "costledgerctl",
		Short: "Inspect and edit cost sheets from the command line",
		Long: `costledgerctl works on the cost sheet backend configured through the
same environment as the server (GATEWAY_BACKEND, GATEWAY_URL, ...).

Writes are blind: every mutating command waits for the read-back and
reports whether the backend shows the change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = build(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a == nil || a.cleanup == nil {
				return nil
			}
			return a.cleanup()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().Duration("timeout", time.Minute, "Overall time limit for backend calls")

	root.AddCommand(newSheetsCmd(), newSheetCmd(), newItemCmd(), newJournalCmd())
	return root
}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(contextKey{}).(*app)
}

func timeoutContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}

// report waits for the read-back of a write and prints its outcome.
func report(ctx context.Context, cmd *cobra.Command, rc *ledger.Reconciliation) error {
	err := rc.Wait(ctx)
	var loadErr *ledger.LoadError
	if err != nil && !errors.As(err, &loadErr) {
		return fmt.Errorf("write %s sent, read-back not finished: %w", rc.WriteID, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "write %s (%s): %s\n", rc.WriteID, rc.Action, rc.Outcome())
	switch rc.Outcome() {
	case ledger.OutcomeUnconfirmed:
		fmt.Fprintln(out, "the backend does not show the change yet; check again later")
	case ledger.OutcomeFailed:
		fmt.Fprintf(out, "read-back failed: %v\n", err)
	}
	return nil
}
