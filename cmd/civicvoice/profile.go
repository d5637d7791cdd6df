package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/identity"
)

var profileCmd = &cobra.Command{
	Use:   "profile [actor-id]",
	Short: "Show a profile with its issues and comments",
	Long: `Show a profile with the issues and comments its actor authored.
Without an id the current actor's profile is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actorID := ""
		if len(args) == 1 {
			actorID = args[0]
		}
		view, err := env.service.Profile(cmd.Context(), actorID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, view)
		}

		out := cmd.OutOrStdout()
		u := view.User
		verified := ""
		if u.Verified {
			verified = " ✓"
		}
		fmt.Fprintf(out, "[%s] %s%s\n%s\n\n", u.AvatarGlyph, u.DisplayName, verified, u.Location)
		fmt.Fprintf(out, "Issues (%d)\n", len(view.Issues))
		for _, issue := range view.Issues {
			fmt.Fprintf(out, "  %s  %-8s  %s\n", issue.ID, issue.Status, issue.Title)
		}
		fmt.Fprintf(out, "\nComments (%d)\n", len(view.Comments))
		now := time.Now()
		for _, c := range view.Comments {
			fmt.Fprintf(out, "  on %q · %s\n    %s\n", c.IssueTitle, c.CreatedLabel(now), c.Text)
		}
		return nil
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the current actor's profile",
	Long: `Edit the current actor's profile. Only the flags given are changed;
every issue and comment the actor authored shows the new identity.

Examples:
  civicvoice profile edit --name "Ravi K." --avatar k`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		var patch identity.Patch
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			patch.DisplayName = &v
		}
		if flags.Changed("avatar") {
			v, _ := flags.GetString("avatar")
			patch.AvatarGlyph = &v
		}
		if flags.Changed("avatar-image") {
			v, _ := flags.GetString("avatar-image")
			patch.AvatarImageRef = &v
		}
		if flags.Changed("location") {
			v, _ := flags.GetString("location")
			patch.Location = &v
		}

		user, err := env.service.EditProfile(cmd.Context(), patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated profile of %s\n", user.DisplayName)
		return nil
	},
}

func init() {
	profileEditCmd.Flags().String("name", "", "Display name")
	profileEditCmd.Flags().String("avatar", "", "Avatar glyph (first letter is used)")
	profileEditCmd.Flags().String("avatar-image", "", "Avatar image ref or URL")
	profileEditCmd.Flags().String("location", "", "Location label")

	profileCmd.AddCommand(profileEditCmd)
	rootCmd.AddCommand(profileCmd)
}
