package api

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"cartwright/internal/api/store"
	"cartwright/pkg/errors"
	"cartwright/pkg/pipeline"
)

// jobBacklog is how many submitted builds may wait for a worker before
// new submissions are turned away.
const jobBacklog = 64

// storeTimeout bounds job status writes. They ride their own deadline so
// a cancelled build can still record its failure.
const storeTimeout = 5 * time.Second

// queuedBuild pairs a job ID with the options captured at submit time.
type queuedBuild struct {
	id   string
	opts pipeline.Options
}

// jobRunner executes queued builds on a fixed pool of workers.
type jobRunner struct {
	runner  *pipeline.Runner
	store   store.Store
	logger  *log.Logger
	workers int

	queue chan queuedBuild
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newJobRunner(runner *pipeline.Runner, st store.Store, logger *log.Logger, workers int) *jobRunner {
	return &jobRunner{
		runner:  runner,
		store:   st,
		logger:  logger,
		workers: workers,
		queue:   make(chan queuedBuild, jobBacklog),
	}
}

// start launches the worker pool. Cancelling ctx aborts in-flight builds;
// builds still queued at that point are marked failed as they drain.
func (j *jobRunner) start(ctx context.Context) {
	for range j.workers {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			for build := range j.queue {
				j.execute(ctx, build)
			}
		}()
	}
}

// submit queues a build. Returns false when the backlog is full or the
// runner has stopped.
func (j *jobRunner) submit(id string, opts pipeline.Options) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return false
	}
	select {
	case j.queue <- queuedBuild{id: id, opts: opts}:
		return true
	default:
		return false
	}
}

// stop closes the queue and waits for the workers to drain it.
func (j *jobRunner) stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
}

func (j *jobRunner) execute(ctx context.Context, build queuedBuild) {
	job, err := j.get(build.id)
	if err != nil {
		j.logger.Error("Job missing at build time", "job", build.id, "error", err)
		return
	}

	if ctx.Err() != nil {
		j.fail(job, "server shut down before the build started")
		return
	}

	job.Status = store.StatusRunning
	job.UpdatedAt = time.Now().UTC()
	j.put(job)

	build.opts.Logger = j.logger
	result, err := j.runner.Execute(ctx, build.opts)
	if err != nil {
		j.fail(job, errors.UserMessage(err))
		j.logger.Warn("Build failed", "job", job.ID, "error", err)
		return
	}

	job.Status = store.StatusCompleted
	job.Error = ""
	job.Artifact = result.Artifact.Data
	job.ArtifactName = result.Artifact.Name
	job.Stats = &store.Stats{
		Records:   result.Stats.Records,
		Completed: result.Stats.Completed,
		Skipped:   result.Stats.Skipped,
		Resources: result.Stats.Resources,
	}
	if !result.Report.Empty() {
		job.Report = &result.Report
	}
	job.UpdatedAt = time.Now().UTC()
	j.put(job)

	j.logger.Info("Build finished",
		"job", job.ID,
		"records", result.Stats.Records,
		"skipped", result.Stats.Skipped,
		"cached", result.CacheInfo.ArtifactHit)
}

func (j *jobRunner) fail(job *store.Job, message string) {
	job.Status = store.StatusFailed
	job.Error = message
	job.UpdatedAt = time.Now().UTC()
	j.put(job)
}

func (j *jobRunner) get(id string) (*store.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return j.store.Get(ctx, id)
}

func (j *jobRunner) put(job *store.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := j.store.Put(ctx, job); err != nil {
		j.logger.Error("Persist job", "job", job.ID, "error", err)
	}
}
