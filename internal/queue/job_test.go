package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJobDefaults(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	job := NewJob(JobTypeTagStatsRefresh, userID, nil)

	if job.Type != JobTypeTagStatsRefresh {
		t.Errorf("Type = %q, want %q", job.Type, JobTypeTagStatsRefresh)
	}
	if job.UserID != userID {
		t.Errorf("UserID = %v, want %v", job.UserID, userID)
	}
	if job.TaskID != nil {
		t.Errorf("TaskID = %v, want nil", job.TaskID)
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", job.MaxRetries)
	}
	if !job.ShouldProcess() {
		t.Error("expected a fresh job to be processable")
	}
}

func TestJobShouldProcess(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{"no window", nil, nil, true},
		{"not yet due", &future, nil, false},
		{"due", &past, nil, true},
		{"expired", nil, &past, false},
		{"within window", &past, &future, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := NewJob(JobTypeTagStatsRefresh, uuid.New(), nil)
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter

			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobIsExpired(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeTagCacheWarm, uuid.New(), nil)
	if job.IsExpired() {
		t.Error("job with no deadline should never expire")
	}

	past := time.Now().Add(-time.Minute)
	job.NotAfter = &past
	if !job.IsExpired() {
		t.Error("job past its deadline should be expired")
	}
}

func TestJobRetryAccounting(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeTagStatsRefresh, uuid.New(), nil)

	for i := 0; i < job.MaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("expected retry %d to be allowed", i+1)
		}
		job.IncrementRetry()
	}

	if job.CanRetry() {
		t.Error("expected retries to be exhausted")
	}
}
