package suite

import "errors"

var (
	ErrContextNotFound     = errors.New("source context file not found")
	ErrContextUnauthorized = errors.New("source context access unauthorized")
	ErrGenerationFailed    = errors.New("generation backend exhausted")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidOutput       = errors.New("backend output is not valid JSON")
	ErrQuotaExceeded       = errors.New("daily request quota exceeded")
	ErrSuiteNotFound       = errors.New("test suite not found")
	ErrValidationFailed    = errors.New("strict validation failed")
)
