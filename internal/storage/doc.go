// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for chatbot.
//
// Every exchange that produced an AI response is written as one Record to
// the "conversations" table. Training examples added by administrators live
// in the same table with IsTrainingData set and provider "manual".
//
// # Key Types
//
//   - Store: Persistence contract (Append, QueryByUser, QueryAll)
//   - SQLiteStore: Local database on modernc.org/sqlite
//   - PostgresStore: Shared database on jackc/pgx
//   - Record: A persisted exchange
//
// # Usage
//
//	store, err := storage.Open(ctx, storage.Options{Driver: "sqlite", Path: path})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	records, err := store.QueryByUser(ctx, userID)
//	storage.SortNewestFirst(records)
//
// # Ordering
//
// Query results are unordered. Callers that display records sort them.
package storage
