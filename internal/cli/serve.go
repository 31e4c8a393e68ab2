// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rizkirmdhn1215/chatbot/internal/cloud"
	"github.com/rizkirmdhn1215/chatbot/internal/config"
	"github.com/rizkirmdhn1215/chatbot/internal/generation"
	"github.com/rizkirmdhn1215/chatbot/internal/server"
	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/tasks"
)

// =============================================================================
// SERVE COMMAND
// =============================================================================

func newServeCmd(opts *globalOptions) *cobra.Command {
	var flags struct {
		Host  string
		Port  int
		Watch bool
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat backend",
		Long: `Run the HTTP backend that answers chat requests, stores every answered
exchange and serves the review and training routes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if flags.Host != "" {
				cfg.Server.Host = flags.Host
			}
			if flags.Port > 0 {
				cfg.Server.Port = flags.Port
			}

			watchPath := ""
			if flags.Watch {
				watchPath = opts.configFile()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, watchPath)
		},
	}

	cmd.Flags().StringVar(&flags.Host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&flags.Watch, "watch", true, "reload model candidates when the config file changes")
	return cmd
}

// runServe wires storage, the persistence queue and the providers into a
// server and runs it until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, watchPath string) error {
	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	srv := newServer(cfg, store)
	fallback := registerProviders(srv.Registry(), cfg, srv.Stats().RecordAttempt)

	if watchPath != "" && fallback != nil {
		watcher, err := watchCandidates(watchPath, fallback)
		if err != nil {
			log.Printf("CONFIG_WATCH_DISABLED | path=%s error=%v", watchPath, err)
		} else {
			defer watcher.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		log.Printf("SERVER_STOPPING | reason=%v", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	closeErr := store.Close()

	log.Printf("SERVER_STOPPED | addr=%s", srv.Addr())
	return errors.Join(runErr, shutdownErr, closeErr)
}

// newServer builds the server with the middleware settings from cfg.
// Providers are registered separately so they can report to its stats.
func newServer(cfg *config.Config, store storage.Store) *server.Server {
	queue := tasks.NewQueue(cfg.Storage.QueueSize, cfg.Storage.Workers,
		tasks.WithEventPrefix("PERSIST"),
		tasks.WithTaskTimeout(cfg.GenerationTimeout()),
		tasks.WithMaxHistory(cfg.Storage.History),
	)

	srv := server.New(generation.NewRegistry(), store, queue).
		WithAddr(cfg.Addr()).
		WithAuth(server.NewAuthConfig(cfg.Server.AdminToken, cfg.Server.AdminTokenHash, cfg.Server.AllowedIPs))
	if len(cfg.Server.CORSOrigins) > 0 {
		srv = srv.WithCORS(server.NewCORSConfig(cfg.Server.CORSOrigins))
	}
	if cfg.Server.RateLimit > 0 {
		srv = srv.WithRateLimiter(server.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}
	return srv
}

// registerProviders adds a generator to registry for every enabled provider.
// It returns the Hugging Face fallback generator, or nil when disabled.
func registerProviders(registry *generation.Registry, cfg *config.Config, observe func(generation.Attempt)) *generation.FallbackGenerator {
	timeout := cfg.GenerationTimeout()

	var fallback *generation.FallbackGenerator
	if hf := cfg.Generation.HuggingFace; hf.Enabled {
		client := cloud.NewHuggingFaceClient(hf.APIKey).WithTimeout(timeout)
		if hf.BaseURL != "" {
			client = client.WithBaseURL(hf.BaseURL)
		}
		fallback = generation.NewFallbackGenerator(client, candidates(hf.Candidates)).
			WithPromptTemplate(cfg.Generation.PromptTemplate)
		if observe != nil {
			fallback = fallback.WithObserver(observe)
		}
		registry.Register(generation.ProviderHuggingFace, fallback)
		log.Printf("PROVIDER_READY | provider=huggingface candidates=%d key=%s", len(hf.Candidates), client.KeyFingerprint())
	}

	if co := cfg.Generation.Cohere; co.Enabled {
		client := cloud.NewCohereClient(co.APIKey).
			WithTimeout(timeout).
			WithModel(co.Model, co.MaxTokens, co.SamplingTemperature())
		if co.BaseURL != "" {
			client = client.WithBaseURL(co.BaseURL)
		}
		registry.Register(generation.ProviderCohere, generation.NewSingleShotGenerator(client))
		log.Printf("PROVIDER_READY | provider=cohere model=%s key=%s", client.Model(), client.KeyFingerprint())
	}
	return fallback
}

// watchCandidates reloads the fallback sequence whenever path changes.
func watchCandidates(path string, fallback *generation.FallbackGenerator) (*config.Watcher, error) {
	watcher, err := config.NewWatcher(path, 0, func(next *config.Config) {
		list := candidates(next.Generation.HuggingFace.Candidates)
		fallback.SetCandidates(list)
		log.Printf("CANDIDATES_RELOADED | count=%d", len(list))
	})
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

func candidates(list []config.CandidateConfig) []generation.ModelCandidate {
	out := make([]generation.ModelCandidate, 0, len(list))
	for _, c := range list {
		out = append(out, generation.ModelCandidate{
			Model:       c.Model,
			MaxLength:   c.MaxLength,
			Temperature: c.Temperature,
			TopP:        c.TopP,
		})
	}
	return out
}
