package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/richxcame/support-chat/internal/supportchat"
	"github.com/spf13/cobra"
)

func newTicketsCmd(a *app) *cobra.Command {
	var (
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List your support tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tickets, err := a.api.GetTicketHistory(cmd.Context(), page, pageSize)
			if err != nil {
				return fmt.Errorf("list tickets: %w", err)
			}
			return printTickets(cmd.OutOrStdout(), tickets)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "tickets per page")
	return cmd
}

func printTickets(out io.Writer, tickets []supportchat.Ticket) error {
	if len(tickets) == 0 {
		fmt.Fprintln(out, "No tickets found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICKET\tSTATUS\tSUBJECT\tUPDATED")
	for _, t := range tickets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ticketLabel(t),
			t.Status,
			t.Subject,
			t.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func newFAQCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "faq <query>",
		Short: "Search the help articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.api.SearchFAQ(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("search faq: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching articles.")
				return nil
			}
			for _, f := range results {
				fmt.Fprintf(out, "[%s] %s\n    %s\n", f.ID, f.Question, f.Answer)
			}
			return nil
		},
	}
}
