package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow repository changes published on the Redis feed",
	Long: `Print recent changes from the Redis feed, then follow new ones until
interrupted. Requires REDIS_URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if env.feed == nil {
			return errors.New("REDIS_URL is not set")
		}
		recent, _ := cmd.Flags().GetInt("recent")
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if recent > 0 {
			changes, err := env.feed.Recent(ctx, recent)
			if err != nil {
				return err
			}
			for i := len(changes) - 1; i >= 0; i-- {
				printChange(out, changes[i], humanize.Time(changes[i].At))
			}
		}

		changes, err := env.feed.Subscribe(ctx)
		if err != nil {
			return err
		}
		for c := range changes {
			printChange(out, c, c.At.Local().Format(time.Kitchen))
		}
		return nil
	},
}

func printChange(w io.Writer, c store.Change, when string) {
	fmt.Fprintf(w, "%-14s  %-16s issue=%s actor=%s\n", when, c.Kind, c.IssueID, c.ActorID)
}

func init() {
	watchCmd.Flags().Int("recent", 10, "Print this many recent changes first")
	rootCmd.AddCommand(watchCmd)
}
