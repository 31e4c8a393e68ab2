// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/rizkirmdhn1215/chatbot/internal/review"
)

// ErrCancelled is returned when an interactive prompt is aborted.
var ErrCancelled = errors.New("cancelled")

// =============================================================================
// TRAIN COMMAND
// =============================================================================

func newTrainCmd(opts *globalOptions) *cobra.Command {
	var flags struct {
		clientFlags
		Prompt   string
		Response string
	}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Add a training example to the conversation log",
		Long: `Add a prompt and its expected response to the conversation log as
training data. Missing fields are asked for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			prompt, response := flags.Prompt, flags.Response
			if prompt == "" || response == "" {
				if err := RequiresTTY("ask for a training example"); err != nil {
					return fmt.Errorf("%w (use --prompt and --response)", err)
				}
				prompt, response, err = askExample(prompt, response)
				if err != nil {
					return err
				}
			}

			notifier := consoleNotifier(newTheme(cfg), cmd.ErrOrStderr())
			defer notifier.Close()

			board := review.NewBoard(flags.newClient(cfg), notifier)
			id, err := board.AddTrainingExample(cmd.Context(), prompt, response)
			if errors.Is(err, review.ErrIncompleteExample) {
				return err
			}
			if err != nil {
				return reported(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&flags.Prompt, "prompt", "", "user message of the example")
	cmd.Flags().StringVar(&flags.Response, "response", "", "expected AI response")
	return cmd
}

// askExample prompts for whichever of prompt and response is empty.
func askExample(prompt, response string) (string, string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	var err error
	if prompt == "" {
		if prompt, err = line.Prompt("User message: "); err != nil {
			return "", "", promptError(err)
		}
	}
	if response == "" {
		if response, err = line.Prompt("Expected AI response: "); err != nil {
			return "", "", promptError(err)
		}
	}
	return prompt, response, nil
}

func promptError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return ErrCancelled
	}
	return fmt.Errorf("failed to read input: %w", err)
}
