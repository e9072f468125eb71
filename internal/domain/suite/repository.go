package suite

import "context"

// Repository persists finalized test suites keyed by suite identifier.
type Repository interface {
	SaveSuite(ctx context.Context, s *TestSuite) error
	GetSuite(ctx context.Context, id string) (*TestSuite, error)
	ListSuites(ctx context.Context, limit int) ([]TestSuite, error)
	DeleteSuite(ctx context.Context, id string) error
}
