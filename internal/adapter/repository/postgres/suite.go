// Package postgres persists finished test suites.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseforge/worker/internal/domain/suite"
)

// Schema:
//
//	CREATE TABLE test_suites (
//	    id         text PRIMARY KEY,
//	    component  text NOT NULL,
//	    summary    text NOT NULL,
//	    payload    jsonb NOT NULL,
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
type SuiteRepository struct {
	pool *pgxpool.Pool
}

var _ suite.Repository = (*SuiteRepository)(nil)

func NewSuiteRepository(pool *pgxpool.Pool) *SuiteRepository {
	return &SuiteRepository{pool: pool}
}

func (r *SuiteRepository) SaveSuite(ctx context.Context, s *suite.TestSuite) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: suite with id is required", suite.ErrInvalidInput)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal suite: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO test_suites (id, component, summary, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			component = EXCLUDED.component,
			summary = EXCLUDED.summary,
			payload = EXCLUDED.payload
	`, s.ID, s.Component, s.StorySummary, payload, s.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert suite %s: %w", s.ID, err)
	}
	return nil
}

func (r *SuiteRepository) GetSuite(ctx context.Context, id string) (*suite.TestSuite, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM test_suites WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", suite.ErrSuiteNotFound, id)
		}
		return nil, fmt.Errorf("get suite %s: %w", id, err)
	}

	var s suite.TestSuite
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("unmarshal suite %s: %w", id, err)
	}
	return &s, nil
}

func (r *SuiteRepository) ListSuites(ctx context.Context, limit int) ([]suite.TestSuite, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT payload FROM test_suites ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list suites: %w", err)
	}
	defer rows.Close()

	var suites []suite.TestSuite
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan suite row: %w", err)
		}
		var s suite.TestSuite
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("unmarshal suite row: %w", err)
		}
		suites = append(suites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suites: %w", err)
	}
	return suites, nil
}

func (r *SuiteRepository) DeleteSuite(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_suites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete suite %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", suite.ErrSuiteNotFound, id)
	}
	return nil
}
