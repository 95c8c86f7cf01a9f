package server

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spotUP/DEViLBOX-sub001/internal/cache"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// JobStatus is the lifecycle state of a conversion job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// jobRetention is how long finished jobs stay queryable.
const jobRetention = 30 * time.Minute

// JobResult holds a finished conversion.
type JobResult struct {
	Format    string
	CacheKey  string
	FromCache bool
	Song      *song.Song
}

// Job represents one conversion job.
type Job struct {
	ID        string
	Filename  string
	CreatedAt time.Time

	mu     sync.Mutex
	status JobStatus
	stage  string
	errMsg string
	result *JobResult
}

// JobView is an immutable snapshot of a job for handlers.
type JobView struct {
	ID        string
	Filename  string
	Status    JobStatus
	Stage     string
	Error     string
	Result    *JobResult
	CreatedAt time.Time
}

// Snapshot returns a consistent view of the job state.
func (j *Job) Snapshot() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{
		ID:        j.ID,
		Filename:  j.Filename,
		Status:    j.status,
		Stage:     j.stage,
		Error:     j.errMsg,
		Result:    j.result,
		CreatedAt: j.CreatedAt,
	}
}

func (j *Job) setStage(status JobStatus, stage string) {
	j.mu.Lock()
	j.status = status
	j.stage = stage
	j.mu.Unlock()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	j.status = StatusFailed
	j.stage = "Failed"
	j.errMsg = err.Error()
	j.mu.Unlock()
}

func (j *Job) complete(result *JobResult) {
	j.mu.Lock()
	j.status = StatusComplete
	j.stage = "Complete"
	j.result = result
	j.mu.Unlock()
}

// JobManager manages conversion jobs.
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	registry *format.Registry
	cache    *cache.SongCache // nil disables caching
	logger   *slog.Logger
}

// NewJobManager creates a new job manager.
func NewJobManager(registry *format.Registry, songCache *cache.SongCache, logger *slog.Logger) *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		registry: registry,
		cache:    songCache,
		logger:   logger,
	}
}

// Create creates a new pending job.
func (m *JobManager) Create(filename string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("%d", time.Now().UnixNano())
	job := &Job{
		ID:        id,
		Filename:  filename,
		CreatedAt: time.Now(),
		status:    StatusPending,
		stage:     "Queued",
	}

	m.jobs[id] = job
	return job
}

// Get retrieves a job by ID.
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Process converts the uploaded module and records the outcome on the job.
func (m *JobManager) Process(job *Job, data []byte) {
	defer func() {
		time.AfterFunc(jobRetention, func() {
			m.mu.Lock()
			delete(m.jobs, job.ID)
			m.mu.Unlock()
		})
	}()

	key := cache.KeyForBytes(data)

	if m.cache != nil {
		if rec, ok := m.cache.Get(key); ok {
			m.logger.Info("serving cached conversion", "key", key, "file", job.Filename)
			job.complete(&JobResult{
				Format:    rec.Format,
				CacheKey:  key,
				FromCache: true,
				Song:      rec.Song,
			})
			return
		}
	}

	job.setStage(StatusProcessing, "Converting...")

	s, err := m.registry.Convert(data, job.Filename)
	if err != nil {
		m.logger.Warn("conversion failed", "file", job.Filename, "error", err)
		job.fail(err)
		return
	}

	if m.cache != nil {
		rec := &cache.Record{SourceFile: job.Filename, Format: s.Format, Song: s}
		if err := m.cache.Put(key, rec); err != nil {
			// Cache failures never fail the conversion.
			m.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}

	job.complete(&JobResult{
		Format:   s.Format,
		CacheKey: key,
		Song:     s,
	})
}
