// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rizkirmdhn1215/chatbot/internal/config"
	"github.com/rizkirmdhn1215/chatbot/internal/toast"
	"github.com/rizkirmdhn1215/chatbot/internal/ui/styles"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	noColor    bool
}

// configFile returns the config path in effect: --config, else the default.
func (o *globalOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return ""
	}
	return path
}

// load reads the configuration for a command run.
func (o *globalOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.noColor {
		cfg.Client.NoColor = true
	}
	return cfg, nil
}

// newTheme builds the view styles honouring --no-color, the config and NO_COLOR.
func newTheme(cfg *config.Config) *styles.Theme {
	return styles.NewThemeWithProfile(GetColorProfile(cfg.Client.NoColor))
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "chatbot",
		Short:         "Chat backend with model fallback and a training review log",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.chatbot/config.toml)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newReviewCmd(opts),
		newTrainCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	if err := NewRootCmd(version).Execute(); err != nil {
		var shown *reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// reportedError marks an error the user has already seen as a toast.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// consoleNotifier returns a notifier that prints each toast to w as it
// appears. Used by the one-shot commands that have no live view.
func consoleNotifier(theme *styles.Theme, w io.Writer) *toast.Notifier {
	return toast.New(toast.WithListener(func(ev toast.Event) {
		if !ev.Dismissed {
			fmt.Fprintln(w, theme.Toast(ev.Toast))
		}
	}))
}
