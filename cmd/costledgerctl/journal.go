package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the write journal",
	}

	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List writes the backend has not confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			a := appFrom(cmd)
			if a.journal == nil {
				return errors.New("write journal is not available; set JOURNAL_DB_PATH")
			}
			entries, err := a.journal.Unconfirmed(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no unconfirmed writes")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SUBMITTED\tACTION\tSHEET\tPARTICULAR\tOUTCOME\tTRANSPORT ERROR")
			for _, e := range entries {
				outcome := e.Outcome
				if outcome == "" {
					outcome = "pending"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.SubmittedAt.Format(time.DateTime), e.Action, e.CostSheetID, e.Particular, outcome, e.TransportError)
			}
			return tw.Flush()
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")

	cmd.AddCommand(pending)
	return cmd
}
