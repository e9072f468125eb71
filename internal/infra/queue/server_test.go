package queue

import (
	"testing"

	"github.com/riverqueue/river"
)

func TestBuildQueueConfig_MultiQueue(t *testing.T) {
	allocations := []QueueAllocation{
		{Name: "testgen_default", MaxWorkers: 5},
		{Name: "testgen_priority", MaxWorkers: 3},
	}

	result := buildQueueConfig(allocations)

	if len(result) != 2 {
		t.Errorf("expected 2 queues, got %d", len(result))
	}

	tests := []struct {
		name       string
		maxWorkers int
	}{
		{"testgen_default", 5},
		{"testgen_priority", 3},
	}

	for _, tt := range tests {
		if q, ok := result[tt.name]; !ok {
			t.Errorf("queue %q not found", tt.name)
		} else if q.MaxWorkers != tt.maxWorkers {
			t.Errorf("queue %q: expected MaxWorkers %d, got %d", tt.name, tt.maxWorkers, q.MaxWorkers)
		}
	}
}

func TestBuildQueueConfig_ZeroWorkersFallsBack(t *testing.T) {
	result := buildQueueConfig([]QueueAllocation{{Name: "testgen_default", MaxWorkers: 0}})

	if q, ok := result["testgen_default"]; !ok {
		t.Error("queue not found")
	} else if q.MaxWorkers != DefaultConcurrency {
		t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, q.MaxWorkers)
	}
}

func TestBuildQueueConfig_EmptyAllocation(t *testing.T) {
	result := buildQueueConfig(nil)

	if q, ok := result[river.QueueDefault]; !ok {
		t.Errorf("expected default queue %q", river.QueueDefault)
	} else if q.MaxWorkers != DefaultConcurrency {
		t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, q.MaxWorkers)
	}
}

func TestBuildQueueConfig_EmptyNameFallsBackToDefault(t *testing.T) {
	result := buildQueueConfig([]QueueAllocation{{Name: "", MaxWorkers: 5}})

	if q, ok := result[river.QueueDefault]; !ok {
		t.Errorf("expected empty name to fall back to default queue %q", river.QueueDefault)
	} else if q.MaxWorkers != 5 {
		t.Errorf("expected MaxWorkers 5, got %d", q.MaxWorkers)
	}
}
