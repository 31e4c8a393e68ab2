// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatbot command tree.
//
// # Commands
//
//   - serve: run the HTTP backend
//   - chat: interactive terminal chat against a running backend
//   - review: list stored conversations, newest first
//   - train: add a training example
//   - config: show, path and init
//
// # Flags
//
// Every command accepts --config to select a configuration file and
// --no-color to disable styling. NO_COLOR and FORCE_COLOR are honoured.
//
// # Usage
//
//	os.Exit(cli.Execute(version))
package cli
