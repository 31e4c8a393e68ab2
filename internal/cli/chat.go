// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rizkirmdhn1215/chatbot/internal/chat"
	"github.com/rizkirmdhn1215/chatbot/internal/client"
	"github.com/rizkirmdhn1215/chatbot/internal/config"
	"github.com/rizkirmdhn1215/chatbot/internal/generation"
	"github.com/rizkirmdhn1215/chatbot/internal/toast"
	chatview "github.com/rizkirmdhn1215/chatbot/internal/ui/chat"
)

// =============================================================================
// CHAT COMMAND
// =============================================================================

// clientFlags are the connection flags shared by chat, review and train.
type clientFlags struct {
	Server string
	Token  string
}

func (f *clientFlags) register(cmd *cobra.Command, admin bool) {
	cmd.Flags().StringVar(&f.Server, "server", "", "backend URL (overrides config)")
	if admin {
		cmd.Flags().StringVar(&f.Token, "token", "", "admin bearer token (overrides config)")
	}
}

// newClient builds an API client from cfg with flag overrides.
func (f *clientFlags) newClient(cfg *config.Config) *client.Client {
	c := client.Config{
		BaseURL:    cfg.Client.ServerURL,
		Timeout:    cfg.GenerationTimeout() * 2,
		AdminToken: cfg.Client.AdminToken,
	}
	if f.Server != "" {
		c.BaseURL = f.Server
	}
	if f.Token != "" {
		c.AdminToken = f.Token
	}
	return client.New(c)
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var flags struct {
		clientFlags
		User     string
		Provider string
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the AI in an interactive terminal view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("chat"); err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			userID := cfg.Client.UserID
			if flags.User != "" {
				userID = flags.User
			}
			if userID == "" {
				return errors.New("a user id is required (--user or client.user_id)")
			}
			provider := cfg.Client.Provider
			if flags.Provider != "" {
				provider = flags.Provider
			}
			if _, ok := generation.ParseProvider(provider); !ok {
				return fmt.Errorf("unknown provider %q", provider)
			}

			restore := logToFile()
			defer restore()

			notifier := toast.New(toast.WithDuration(cfg.ToastDuration()))
			defer notifier.Close()

			sess := chat.NewSession(flags.newClient(cfg), notifier, userID, provider)
			model := chatview.New(cmd.Context(), sess, notifier, newTheme(cfg), chatview.Options{
				NoColor: !ColorsEnabled(cfg.Client.NoColor),
				Timeout: cfg.GenerationTimeout() * 2,
			})

			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVarP(&flags.User, "user", "u", "", "user id sent with each message")
	cmd.Flags().StringVar(&flags.Provider, "provider", "", "huggingface or cohere (overrides config)")
	return cmd
}

// logToFile sends the standard logger to ~/.chatbot/chat.log while the
// terminal view owns the screen. The returned func restores stderr output.
func logToFile() func() {
	previous := log.Writer()
	dir, err := config.ConfigDir()
	if err == nil {
		err = os.MkdirAll(dir, 0700)
	}
	if err != nil {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(previous) }
	}
	f, err := tea.LogToFile(filepath.Join(dir, "chat.log"), "chat")
	if err != nil {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(previous) }
	}
	return func() {
		f.Close()
		log.SetOutput(previous)
	}
}
