package queue

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/caseforge/worker/internal/adapter/queue/generate"
)

// Client is insert-only (no worker).
type Client struct {
	client *river.Client[pgx.Tx]
}

func NewClient(ctx context.Context, pool *pgxpool.Pool) (*Client, error) {
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, err
	}

	return &Client{
		client: client,
	}, nil
}

func (c *Client) Close() error {
	// river.Client doesn't need explicit close for insert-only mode
	return nil
}

// EnqueueGeneration inserts one generation job. Uniqueness by args means
// re-submitting the same request is a no-op while the first job is live.
func (c *Client) EnqueueGeneration(ctx context.Context, args generate.Args) error {
	_, err := c.client.Insert(ctx, args, nil)
	return err
}
