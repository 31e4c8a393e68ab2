// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rizkirmdhn1215/chatbot/internal/export"
	"github.com/rizkirmdhn1215/chatbot/internal/review"
)

// =============================================================================
// REVIEW COMMAND
// =============================================================================

func newReviewCmd(opts *globalOptions) *cobra.Command {
	var flags struct {
		clientFlags
		User         string
		Full         bool
		UTC          bool
		Width        int
		TrainingOnly bool
		Export       string
		OutDir       string
	}

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List stored conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			theme := newTheme(cfg)
			out := cmd.OutOrStdout()

			notifier := consoleNotifier(theme, cmd.ErrOrStderr())
			defer notifier.Close()

			exportOpts := &export.Options{
				OutputDir:         flags.OutDir,
				TrainingOnly:      flags.TrainingOnly,
				IncludeTimestamps: true,
			}
			var exporter export.Exporter
			if flags.Export != "" {
				if exporter, err = export.New(export.Format(flags.Export), exportOpts); err != nil {
					return err
				}
			}

			board := review.NewBoard(flags.newClient(cfg), notifier)
			records, err := board.Load(cmd.Context(), flags.User)
			if err != nil {
				return reported(err)
			}

			if exporter != nil {
				path, err := export.ExportToFile(records, exporter, exportOpts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported %d conversations to %s\n", len(export.Filter(records, exportOpts)), path)
				return nil
			}
			records = export.Filter(records, exportOpts)

			renderOpts := review.RenderOptions{Width: flags.Width, Full: flags.Full}
			if renderOpts.Width <= 0 {
				renderOpts.Width = GetTerminalWidth()
			}
			if flags.UTC {
				renderOpts.Location = time.UTC
			}
			fmt.Fprintln(out, review.Render(theme, records, renderOpts))
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVarP(&flags.User, "user", "u", "", "only show this user's conversations")
	cmd.Flags().BoolVar(&flags.Full, "full", false, "print whole messages instead of one line each")
	cmd.Flags().BoolVar(&flags.UTC, "utc", false, "show timestamps in UTC")
	cmd.Flags().IntVar(&flags.Width, "width", 0, "output width (default: terminal width)")
	cmd.Flags().BoolVar(&flags.TrainingOnly, "training-only", false, "only include training examples")
	cmd.Flags().StringVar(&flags.Export, "export", "", "write a file instead of listing: jsonl, json or markdown")
	cmd.Flags().StringVarP(&flags.OutDir, "out", "o", ".", "directory for --export files")
	return cmd
}
