package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"costledger/internal/core"
)

func newSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List and create cost sheets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cost sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			sheets, err := appFrom(cmd).store.LoadSheets(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCLIENT\tLINKED\tSTATUS\tOWNER")
			for _, s := range sheets {
				linked := string(s.Linked.Type)
				if s.Linked.ID != "" {
					linked += " " + s.Linked.ID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.ClientName, linked, s.Status, s.Owner)
			}
			return tw.Flush()
		},
	}

	var fields core.CostSheet
	var linkType, status string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a cost sheet and wait for it to appear",
		Example: `  costledgerctl sheets create --client Acme --link-type Deal --link-id D-42 --link-name "Acme renewal"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			fields.Linked.Type = core.LinkType(linkType)
			fields.Status = core.ParseStatus(status)
			rc, err := appFrom(cmd).store.CreateCostSheet(ctx, fields)
			if err != nil {
				return err
			}
			return report(ctx, cmd, rc)
		},
	}
	f := create.Flags()
	f.StringVar(&fields.ClientName, "client", "", "Client name")
	f.StringVar(&linkType, "link-type", "", "Linked entity type (Account, Deal, Project, Order)")
	f.StringVar(&fields.Linked.ID, "link-id", "", "Linked entity ID")
	f.StringVar(&fields.Linked.Name, "link-name", "", "Linked entity name")
	f.StringVar(&fields.Owner, "owner", "", "Sheet owner")
	f.StringVar(&fields.ProjectType, "project-type", "", "Project type")
	f.StringVar(&fields.Notes, "notes", "", "Notes")
	f.StringVar(&status, "status", "Draft", "Status (Draft, Final, Archived)")

	cmd.AddCommand(list, create)
	return cmd
}

func newSheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Inspect one cost sheet",
	}
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a sheet's active items and per-head totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			a := appFrom(cmd)
			if _, err := a.store.LoadValidation(ctx); err != nil {
				return err
			}
			items, err := a.store.OpenSheet(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HEAD\tPARTICULAR\tQTY\tRATE\tAMOUNT\tTAX\tTOTAL")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					it.Head, it.Particular, it.Quantity, it.Rate,
					a.display(it.Amount), a.display(it.TaxAmount), a.display(it.TotalAmount))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			totals := a.store.Totals()
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			for _, h := range totals.Heads {
				fmt.Fprintf(tw, "%s\t%s\t\n", h.Head, a.money.Format(h.Total.InexactFloat64()))
			}
			fmt.Fprintf(tw, "Total\t%s\t\n", a.money.Format(totals.GrandDecimal().InexactFloat64()))
			if err := tw.Flush(); err != nil {
				return err
			}
			if totals.Excluded > 0 {
				fmt.Fprintf(out, "%d item(s) under heads missing from the validation list are not counted\n", totals.Excluded)
			}
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}
