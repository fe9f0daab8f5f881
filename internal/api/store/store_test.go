package store

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func TestNewJob(t *testing.T) {
	job := NewJob(time.Hour)

	if job.ID == "" {
		t.Error("expected a generated job ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", job.Status, StatusQueued)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("expected creation timestamps to be set")
	}
	if got, want := job.ExpiresAt.Sub(job.CreatedAt), time.Hour; got != want {
		t.Errorf("expiry window = %v, want %v", got, want)
	}
	if job.IsExpired() {
		t.Error("fresh job should not be expired")
	}

	other := NewJob(time.Hour)
	if other.ID == job.ID {
		t.Error("expected unique IDs for separate jobs")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	job := NewJob(time.Hour)
	job.ArtifactName = "course.imscc"
	if err := st.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := st.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}
	if got.ArtifactName != "course.imscc" {
		t.Errorf("ArtifactName = %q, want %q", got.ArtifactName, "course.imscc")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()

	_, err := st.Get(context.Background(), "nope")
	if !stderrors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	job := NewJob(time.Hour)
	if err := st.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Mutating the caller's job must not change what the store returns.
	job.Status = StatusFailed

	got, err := st.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", got.Status, StatusQueued)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	job := NewJob(-time.Minute)
	if err := st.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := st.Get(ctx, job.ID); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound for expired job", err)
	}

	if err := st.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	st.mu.RLock()
	n := len(st.jobs)
	st.mu.RUnlock()
	if n != 0 {
		t.Errorf("jobs remaining after Cleanup = %d, want 0", n)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	job := NewJob(time.Hour)
	if err := st.Put(ctx, job); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.Get(ctx, job.ID); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}

	// Deleting a missing job is not an error.
	if err := st.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete() of missing job error = %v", err)
	}
}
