package suite

import "context"

// Generator defines the interface for a generation backend.
// Implementations own credential rotation, rate limiting, retries and the
// multi-turn recovery protocol; they return a raw parsed JSON object that
// still needs normalization by the output parser.
type Generator interface {
	// Generate turns a request (plus optional source-code context) into a
	// raw JSON object with a "test_cases" array.
	Generate(ctx context.Context, req GenerationRequest, contextCode string) (RawSuite, error)

	// Close releases resources held by the backend client.
	Close() error
}
