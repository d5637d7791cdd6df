package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/search"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search issues, ministries and districts",
	Long: `Search issues, ministries and districts for a case-insensitive substring.
Status and category facets narrow issue results only.

Examples:
  civicvoice search pothole
  civicvoice search road --scope issues --status Pending,Approved
  civicvoice search georgetown --scope regions --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		scopeName, _ := flags.GetString("scope")
		statuses, _ := flags.GetStringSlice("status")
		categories, _ := flags.GetStringSlice("category")

		scope, err := search.ParseScope(scopeName)
		if err != nil {
			return err
		}
		q := search.Query{Text: strings.Join(args, " "), Scope: scope}
		for _, s := range statuses {
			q.Facets.Statuses = append(q.Facets.Statuses, store.Status(s))
		}
		for _, c := range categories {
			q.Facets.Categories = append(q.Facets.Categories, store.Category(c))
		}

		resp, err := env.service.Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, resp)
		}

		out := cmd.OutOrStdout()
		if resp.Total == 0 {
			fmt.Fprintf(out, "No results for %q\n", resp.Query)
			return nil
		}
		fmt.Fprintf(out, "%d results for %q\n", resp.Total, resp.Query)
		for _, r := range resp.Results {
			fmt.Fprintf(out, "  [%s] %s  %s\n      %s\n", r.Type, r.ID, r.Title, r.Snippet)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("scope", "all", "all, issues, bodies or regions")
	searchCmd.Flags().StringSlice("status", nil, "Only issues with one of these statuses")
	searchCmd.Flags().StringSlice("category", nil, "Only issues in one of these categories")
	rootCmd.AddCommand(searchCmd)
}
