// Package store persists build jobs for the API server.
//
// A Job tracks one package build from upload to download: its status, the
// validation report, and the finished artifact bytes. The Store interface
// has two backends:
//   - memory: in-process map for development and single-instance servers
//   - mongo: MongoDB collection for deployments that need jobs to survive
//     restarts or to be shared across replicas
//
// Jobs carry an expiry stamped at submission time. The memory backend
// treats expired jobs as missing on read and reclaims them in Cleanup; the
// mongo backend additionally installs a TTL index so the database reaps
// expired documents on its own.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cartwright/pkg/errors"
	"cartwright/pkg/pipeline"
)

// ErrNotFound is returned when a job does not exist or has expired.
var ErrNotFound = errors.New(errors.ErrCodeJobNotFound, "job not found")

// Status describes where a job is in its lifecycle.
type Status string

// Job lifecycle states.
const (
	StatusQueued    Status = "queued"    // accepted, waiting for a worker
	StatusRunning   Status = "running"   // build in progress
	StatusCompleted Status = "completed" // artifact ready for download
	StatusFailed    Status = "failed"    // build aborted, see Job.Error
)

// Terminal reports whether the job has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one tracked package build.
type Job struct {
	ID     string `json:"id" bson:"_id"`
	Status Status `json:"status" bson:"status"`

	// Error holds the failure message when Status is StatusFailed.
	Error string `json:"error,omitempty" bson:"error,omitempty"`

	// Report lists rejected records for completed builds. Nil when every
	// record made it into the package.
	Report *pipeline.Report `json:"report,omitempty" bson:"report,omitempty"`

	// Stats summarizes the finished build.
	Stats *Stats `json:"stats,omitempty" bson:"stats,omitempty"`

	// Artifact holds the built archive. Excluded from JSON responses;
	// clients fetch it through the package download endpoint.
	Artifact     []byte `json:"-" bson:"artifact,omitempty"`
	ArtifactName string `json:"artifact_name,omitempty" bson:"artifact_name,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Stats summarizes a finished build.
type Stats struct {
	Records   int `json:"records" bson:"records"`
	Completed int `json:"completed" bson:"completed"`
	Skipped   int `json:"skipped" bson:"skipped"`
	Resources int `json:"resources" bson:"resources"`
}

// NewJob returns a queued job with a fresh ID that expires after ttl.
func NewJob(ttl time.Duration) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the job's retention window has passed.
func (j *Job) IsExpired() bool {
	return time.Now().After(j.ExpiresAt)
}

// Store is the interface job backends implement.
type Store interface {
	// Get retrieves a job by ID.
	// Returns ErrNotFound if the job does not exist or has expired.
	Get(ctx context.Context, id string) (*Job, error)

	// Put stores or replaces a job.
	Put(ctx context.Context, job *Job) error

	// Delete removes a job.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired jobs (no-op for backends with native TTL).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
