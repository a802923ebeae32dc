package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/widget"
)

// Status represents the upload job status.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Job represents one background widget upload.
type Job struct {
	ID          string     `json:"id"`
	WidgetID    string     `json:"widgetId"`
	FileCount   int        `json:"fileCount"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Manager runs widget uploads in the background and tracks them as jobs.
type Manager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	ctx  context.Context
}

// NewManager creates a job manager. Uploads run under ctx; there is no
// per-upload timeout or cancellation.
func NewManager(ctx context.Context) *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		ctx:  ctx,
	}
}

// StartJob begins an upload of the widget's selection. Errors from
// widget.Begin (no files, upload in flight) are returned without creating a job.
func (m *Manager) StartJob(w *widget.Widget) (*Job, error) {
	pending, err := w.Begin()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		WidgetID:  w.ID(),
		FileCount: pending.FileCount(),
		Status:    StatusUploading,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	started := *job
	m.mu.Unlock()

	go m.processJob(job, w, pending)

	return &started, nil
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	c := *job
	return &c, true
}

func (m *Manager) processJob(job *Job, w *widget.Widget, pending *widget.Pending) {
	defer func() {
		if r := recover(); r != nil {
			m.markJobError(job, fmt.Sprintf("panic: %v", r))
		}
	}()

	fmt.Printf("[UploadJob %s] Starting upload for widget %s\n", models.ShortID(job.ID), models.ShortID(job.WidgetID))

	unsubscribe := w.Subscribe(func(s models.WidgetSnapshot) {
		m.updateJobProgress(job, s.Progress.Percent)
	})
	defer unsubscribe()

	if err := pending.Run(m.ctx); err != nil {
		m.markJobError(job, err.Error())
		return
	}

	m.markJobComplete(job)
	fmt.Printf("[UploadJob %s] Upload complete\n", models.ShortID(job.ID))
}

// updateJobProgress updates job progress (thread-safe).
func (m *Manager) updateJobProgress(job *Job, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.Status == StatusUploading && percent > job.Progress {
		job.Progress = percent
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	fmt.Printf("[UploadJob %s] Error: %s\n", models.ShortID(job.ID), errMsg)
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
