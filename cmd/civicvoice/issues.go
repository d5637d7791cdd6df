package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List reported issues, newest first",
	Long: `List reported issues, newest first, with per-category counts.

Examples:
  civicvoice issues
  civicvoice issues --category Health --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		category, _ := cmd.Flags().GetString("category")
		home, err := env.service.Home(cmd.Context(), store.Category(category))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, home)
		}

		out := cmd.OutOrStdout()
		for _, c := range store.Categories {
			fmt.Fprintf(out, "%s %d  ", c, home.Counts[c])
		}
		fmt.Fprintf(out, "\n\n")

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tAUTHOR\tCREATED\tTITLE")
		now := time.Now()
		for _, issue := range home.Issues {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				issue.ID, issue.Status, issue.Priority, issue.Category,
				issue.DisplayAuthor().DisplayName, issue.CreatedLabel(now), issue.Title)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show one issue with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := env.service.Issue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, detail)
		}

		out := cmd.OutOrStdout()
		issue := detail.Issue
		fmt.Fprintf(out, "%s\n%s · %s · %s priority\n", issue.Title, issue.Status, issue.Category, issue.Priority)
		author := detail.Author.DisplayName
		if detail.Author.Verified {
			author += " (verified)"
		}
		fmt.Fprintf(out, "by %s · %s · %s\n\n", author, issue.Location, detail.Created)
		fmt.Fprintf(out, "%s\n", issue.Description)
		for _, ref := range append(append(append([]string{}, detail.Media.Photos...), detail.Media.Videos...), detail.Media.Audio...) {
			fmt.Fprintf(out, "  media: %s\n", ref)
		}
		if len(issue.Comments) > 0 {
			fmt.Fprintf(out, "\nComments (%d)\n", len(issue.Comments))
		}
		now := time.Now()
		for _, c := range issue.Comments {
			fmt.Fprintf(out, "  %s · %s\n    %s\n", c.Author.DisplayName, c.CreatedLabel(now), c.Text)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a new issue as the current actor",
	Long: `Report a new issue as the current actor.

Examples:
  civicvoice report --title "Broken pipe" --description "..." \
    --location "Linden, Region 10" --lat 6.0 --lng -58.3 --category Infrastructure`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		title, _ := flags.GetString("title")
		summary, _ := flags.GetString("summary")
		description, _ := flags.GetString("description")
		category, _ := flags.GetString("category")
		priority, _ := flags.GetString("priority")
		location, _ := flags.GetString("location")
		anonymous, _ := flags.GetBool("anonymous")
		photos, _ := flags.GetStringSlice("photo")
		videos, _ := flags.GetStringSlice("video")
		audio, _ := flags.GetStringSlice("audio")

		draft := store.IssueDraft{
			Title:       title,
			Summary:     summary,
			Description: description,
			Category:    store.Category(category),
			Priority:    store.Priority(priority),
			Location:    location,
			Anonymous:   anonymous,
			Media:       store.Media{Photos: photos, Videos: videos, Audio: audio},
		}
		if flags.Changed("lat") || flags.Changed("lng") {
			lat, _ := flags.GetFloat64("lat")
			lng, _ := flags.GetFloat64("lng")
			draft.Coordinates = &store.Coordinates{Lat: lat, Lng: lng}
		}

		issue, err := env.service.Report(cmd.Context(), draft)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, issue)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reported %s: %s\n", issue.ID, issue.Title)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <issue-id> <text...>",
	Short: "Comment on an issue as the current actor",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment, err := env.service.Comment(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, comment)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s to %s\n", comment.ID, args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <issue-id> <Pending|Approved|Resolved>",
	Short: "Change the status of an issue (admin only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := env.service.SetStatus(cmd.Context(), args[0], store.Status(args[1]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, issue)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", issue.ID, issue.Status)
		return nil
	},
}

func init() {
	issuesCmd.Flags().String("category", "", "Only list issues in this category")

	reportCmd.Flags().String("title", "", "Issue title (required)")
	reportCmd.Flags().String("summary", "", "Card summary; derived from the description when empty")
	reportCmd.Flags().String("description", "", "Full description (required)")
	reportCmd.Flags().String("category", "", "Category (default Infrastructure)")
	reportCmd.Flags().String("priority", "", "Priority (default Medium)")
	reportCmd.Flags().String("location", "", "Location label (required)")
	reportCmd.Flags().Float64("lat", 0, "Latitude (required)")
	reportCmd.Flags().Float64("lng", 0, "Longitude (required)")
	reportCmd.Flags().Bool("anonymous", false, "Hide your identity on this report")
	reportCmd.Flags().StringSlice("photo", nil, "Photo ref or URL (repeatable)")
	reportCmd.Flags().StringSlice("video", nil, "Video ref or URL (repeatable)")
	reportCmd.Flags().StringSlice("audio", nil, "Audio ref or URL (repeatable)")

	rootCmd.AddCommand(issuesCmd, showCmd, reportCmd, commentCmd, statusCmd)
}
