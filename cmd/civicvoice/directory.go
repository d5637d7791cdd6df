package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var ministriesCmd = &cobra.Command{
	Use:   "ministries",
	Short: "List government ministries with managed and resolved issue counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		view, err := env.service.Ministries(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, view)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCONTACT\tMANAGED\tRESOLVED\tRATE")
		for _, m := range view.Ministries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f%%\n",
				m.ID, m.Name, m.Contact,
				humanize.Comma(int64(m.IssuesManaged)), humanize.Comma(int64(m.IssuesResolved)),
				m.ResolutionRate()*100)
		}
		fmt.Fprintf(w, "\tTotal\t\t%s\t%s\t\n", humanize.Comma(int64(view.Managed)), humanize.Comma(int64(view.Resolved)))
		return w.Flush()
	},
}

var districtsCmd = &cobra.Command{
	Use:   "districts",
	Short: "List administrative districts with population and issue counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		view, err := env.service.Districts(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, view)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGION\tPOPULATION\tREPORTED\tRESOLVED")
		for _, d := range view.Districts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
				d.ID, d.Name, d.Region, humanize.Comma(int64(d.Population)),
				d.IssuesReported, d.IssuesResolved)
		}
		fmt.Fprintf(w, "\tTotal\t\t%s\t%d\t%d\n", humanize.Comma(int64(view.Population)), view.Reported, view.Resolved)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(ministriesCmd, districtsCmd)
}
