// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// POSTGRES STORE
// =============================================================================

// PostgresStore persists records in PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	closed bool
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// schema if it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, rec Record) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	rec, err := prepare(rec)
	if err != nil {
		return "", err
	}

	var userID *string
	if rec.UserID != "" {
		userID = &rec.UserID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_message, ai_response, provider, user_id, is_training_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.UserMessage, rec.AIResponse, rec.Provider, userID, rec.IsTrainingData, rec.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return rec.ID, nil
}

// AppendTraining implements Store.
func (s *PostgresStore) AppendTraining(ctx context.Context, ex TrainingExample) (string, error) {
	return s.Append(ctx, trainingRecord(ex))
}

const postgresColumns = `id, user_message, ai_response, provider, COALESCE(user_id, '') AS user_id, is_training_data, created_at`

// QueryByUser implements Store.
func (s *PostgresStore) QueryByUser(ctx context.Context, userID string) ([]Record, error) {
	return s.query(ctx, `SELECT `+postgresColumns+` FROM conversations WHERE user_id = $1`, userID)
}

// QueryAll implements Store.
func (s *PostgresStore) QueryAll(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT `+postgresColumns+` FROM conversations`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, fmt.Errorf("collecting rows: %w", err)
	}
	if records == nil {
		records = make([]Record, 0)
	}
	for i := range records {
		records[i].Timestamp = records[i].Timestamp.UTC()
	}
	return records, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.pool.Ping(ctx)
}

// Close implements Store. Closing twice is a no-op.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.pool.Close()
	}
	return nil
}
