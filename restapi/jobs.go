// Package restapi surfaces replication jobs over HTTP: a job is submitted with its source and
// destination backends, runs in the background and is polled for progress.
package restapi

import (
	"context"
	"fmt"
	log "log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/backend"
)

// Job statuses.
const (
	Running   = "running"
	Succeeded = "succeeded"
	Failed    = "failed"
)

// maxWarnings caps the warnings kept per job.
const maxWarnings = 100

// JobState is the externally visible state of a replication job.
type JobState struct {
	ID        coverage.UUID `json:"id"`
	Status    string        `json:"status"`
	Percent   float64       `json:"percent"`
	Coverage  string        `json:"coverage,omitempty"`
	Message   string        `json:"message,omitempty"`
	Completed int64         `json:"completed,omitempty"`
	Total     int64         `json:"total,omitempty"`
	ETA       time.Duration `json:"eta,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	// WarningCount includes the warnings dropped past the cap.
	WarningCount int        `json:"warning_count"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// RunFunc executes a job, reporting to listener.
type RunFunc func(ctx context.Context, job backend.Job, listener coverage.Listener) error

// Jobs is the in-process job registry.
type Jobs struct {
	ctx context.Context
	run RunFunc
	// logger receives every job event, tagged with the job id.
	logger *log.Logger

	mu    sync.RWMutex
	jobs  map[coverage.UUID]*JobState
	order []coverage.UUID
	wg    sync.WaitGroup
}

// NewJobs returns a registry running jobs with backend.Job.Run. Jobs are cancelled with ctx.
func NewJobs(ctx context.Context) *Jobs {
	return NewJobsWithRunner(ctx, func(ctx context.Context, job backend.Job, listener coverage.Listener) error {
		return job.Run(ctx, listener)
	})
}

// NewJobsWithRunner returns a registry executing jobs with run.
func NewJobsWithRunner(ctx context.Context, run RunFunc) *Jobs {
	return &Jobs{
		ctx:    ctx,
		run:    run,
		logger: log.Default(),
		jobs:   make(map[coverage.UUID]*JobState),
	}
}

// Start validates the job and launches it in the background.
func (j *Jobs) Start(job backend.Job) (JobState, error) {
	if err := job.Validate(); err != nil {
		return JobState{}, err
	}
	id := coverage.NewUUID()
	state := &JobState{ID: id, Status: Running, StartedAt: time.Now()}

	j.mu.Lock()
	j.jobs[id] = state
	j.order = append(j.order, id)
	snapshot := j.copyState(state)
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		listener := coverage.NewMultiListener(
			coverage.ListenerFunc(func(ctx context.Context, e coverage.Event) {
				j.onEvent(id, e)
			}),
			coverage.NewSlogListener(j.logger.With("job", id.String())),
		)
		err := j.run(j.ctx, job, listener)
		j.finish(id, err)
	}()
	log.Info("replication job started", "id", id.String(), "source", job.Source.Type, "destination", job.Destination.Type)
	return snapshot, nil
}

func (j *Jobs) onEvent(id coverage.UUID, e coverage.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.jobs[id]
	switch e.Kind {
	case coverage.Progress:
		s.Percent = e.Percent
		s.Coverage = e.Coverage
		s.Message = e.Message
		s.Completed, s.Total, s.ETA = e.Completed, e.Total, e.ETA
	case coverage.Warning:
		s.WarningCount++
		if len(s.Warnings) < maxWarnings {
			s.Warnings = append(s.Warnings, e.Message)
		}
	case coverage.Failure:
		s.Error = e.Message
	}
}

func (j *Jobs) finish(id coverage.UUID, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.jobs[id]
	now := time.Now()
	s.EndedAt = &now
	if err != nil {
		s.Status = Failed
		s.Error = err.Error()
		log.Warn("replication job failed", "id", id.String(), "error", err)
		return
	}
	s.Status = Succeeded
	log.Info("replication job succeeded", "id", id.String(), "warnings", s.WarningCount)
}

// Get returns the state of a job.
func (j *Jobs) Get(id coverage.UUID) (JobState, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s, ok := j.jobs[id]
	if !ok {
		return JobState{}, fmt.Errorf("job %s not found", id)
	}
	return j.copyState(s), nil
}

// List returns the state of every job in submission order.
func (j *Jobs) List() []JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	r := make([]JobState, 0, len(j.order))
	for _, id := range j.order {
		r = append(r, j.copyState(j.jobs[id]))
	}
	return r
}

// Wait blocks until every started job has ended.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

func (j *Jobs) copyState(s *JobState) JobState {
	c := *s
	c.Warnings = slices.Clone(s.Warnings)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}
