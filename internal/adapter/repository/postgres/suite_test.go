package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/caseforge/worker/internal/domain/suite"
)

func TestSaveSuite_RejectsNilAndEmptyID(t *testing.T) {
	r := NewSuiteRepository(nil)

	if err := r.SaveSuite(context.Background(), nil); !errors.Is(err, suite.ErrInvalidInput) {
		t.Errorf("nil suite: got %v", err)
	}
	if err := r.SaveSuite(context.Background(), &suite.TestSuite{}); !errors.Is(err, suite.ErrInvalidInput) {
		t.Errorf("empty id: got %v", err)
	}
}
