package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/app"
	"github.com/icemandesignz-code/iceman-citizen-voice/internal/narration"
)

var narrateCmd = &cobra.Command{
	Use:   "narrate <issue-id>",
	Short: "Read an issue aloud, highlighting words as they are spoken",
	Long: `Read an issue card or its description aloud. The spoken prefix is
printed as narration progresses; Ctrl-C stops it.

Examples:
  civicvoice narrate 1
  civicvoice narrate 1 --block description`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		block, _ := cmd.Flags().GetString("block")
		out := cmd.OutOrStdout()

		env.onFrame = func(s narration.Snapshot) {
			if s.State == narration.StateSpeaking {
				fmt.Fprintf(out, "\r%s", s.Highlight)
			}
		}

		type ended struct {
			reason narration.EndReason
			err    error
		}
		done := make(chan ended, 1)
		_, err := env.service.Narrate(cmd.Context(), args[0], app.NarrationBlock(block), func(reason narration.EndReason, err error) {
			done <- ended{reason: reason, err: err}
		})
		if err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var result ended
		select {
		case result = <-done:
		case <-sigCh:
			env.service.StopNarration()
			result = <-done
		}
		fmt.Fprintln(out)
		if result.reason == narration.EndError {
			return fmt.Errorf("narration failed: %w", result.err)
		}
		fmt.Fprintf(out, "Narration %s\n", result.reason)
		return nil
	},
}

func init() {
	narrateCmd.Flags().String("block", string(app.BlockCard), "card or description")
	rootCmd.AddCommand(narrateCmd)
}
