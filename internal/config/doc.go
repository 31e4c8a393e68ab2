// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatbot.
//
// # Key Types
//
//   - Config: Root configuration (server, generation, storage, client)
//   - CandidateConfig: One model of the Hugging Face fallback sequence
//   - ValidateErrors: Aggregated validation failures
//   - Watcher: fsnotify-based reloader for the config file
//
// # Usage
//
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.ValidateForServe(); err != nil {
//	    return err // missing API key or storage location
//	}
//
// # Environment
//
// HUGGINGFACE_API_KEY and COHERE_API_KEY supply provider credentials.
// CHATBOT_* variables override the remaining settings.
package config
