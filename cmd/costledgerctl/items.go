package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"costledger/internal/core"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add and delete line items",
	}

	var draft core.LineItem
	add := &cobra.Command{
		Use:   "add <sheet> <head>",
		Short: "Add a line item; missing amounts are derived from quantity, rate and tax",
		Example: `  costledgerctl item add CS-1A2B Travel --particular "Airport cab" --qty 2 --rate 450 --tax-percent 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			a := appFrom(cmd)
			if _, err := a.store.LoadValidation(ctx); err != nil {
				return err
			}
			if _, err := a.store.OpenSheet(ctx, args[0]); err != nil {
				return err
			}

			preview := core.ComputeLineItem(draft)
			fmt.Fprintf(cmd.OutOrStdout(), "adding %q: amount %s, tax %s, total %s\n",
				draft.Particular, a.display(preview.Amount), a.display(preview.TaxAmount), a.display(preview.TotalAmount))

			rc, err := a.store.AddLineItem(ctx, args[1], draft)
			if err != nil {
				return err
			}
			return report(ctx, cmd, rc)
		},
	}
	f := add.Flags()
	f.StringVar(&draft.Particular, "particular", "", "What the expense is for")
	f.StringVar(&draft.Details, "details", "", "Free-form details")
	f.StringVar(&draft.Subcategory, "subcategory", "", "Subcategory")
	f.StringVar(&draft.ExpenseDate, "date", "", "Expense date")
	f.StringVar(&draft.Tag, "tag", "", "Tag")
	f.StringVar(&draft.Quantity, "qty", "", "Quantity")
	f.StringVar(&draft.Rate, "rate", "", "Rate per unit")
	f.StringVar(&draft.Amount, "amount", "", "Amount; overrides qty x rate")
	f.StringVar(&draft.TaxPercent, "tax-percent", "", "Tax percent")
	f.StringVar(&draft.TaxAmount, "tax-amount", "", "Tax amount; overrides tax percent")
	f.StringVar(&draft.TotalAmount, "total", "", "Total; overrides amount + tax")
	f.StringVar(&draft.Voucher, "voucher", "", "Voucher or invoice number")
	f.StringVar(&draft.PaymentStatus, "payment-status", "", "Payment status")
	f.StringVar(&draft.Attachment, "attachment", "", "Attachment link")

	del := &cobra.Command{
		Use:   "delete <sheet> <particular>",
		Short: "Soft-delete every item with the given particular",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeoutContext(cmd)
			defer cancel()
			a := appFrom(cmd)
			if _, err := a.store.OpenSheet(ctx, args[0]); err != nil {
				return err
			}
			rc, err := a.store.SoftDeleteLineItem(ctx, core.LineItem{CostSheetID: args[0], Particular: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d local row(s)\n", rc.Removed)
			return report(ctx, cmd, rc)
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}
