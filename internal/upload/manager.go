// Package upload validates upload batches and owns the ordered upload list.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lab-automation/backend/internal/models"
)

// Status represents the upload job status.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Job represents one accepted batch on its way into the upload list.
type Job struct {
	ID          string            `json:"id"`
	Status      Status            `json:"status"`
	FileCount   int               `json:"fileCount"`
	Files       []models.FileInfo `json:"files"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`

	done chan struct{}
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) snapshot() Job {
	c := *j
	c.Files = slices.Clone(j.Files)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Incoming is a file offered for upload. Open is called once to read the blob.
type Incoming struct {
	Name         string
	Size         int64
	MIMEType     string
	LastModified time.Time
	Open         func() (io.ReadCloser, error)
}

func (in Incoming) info() models.FileInfo {
	return models.FileInfo{Name: in.Name, Size: in.Size, MIMEType: in.MIMEType, LastModified: in.LastModified}
}

// Store defines the interface needed from the storage layer.
type Store interface {
	Save(name, mimeType string, lastModified time.Time, r io.Reader) (*models.FileInfo, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
}

// ErrUploadInProgress rejects a batch while another one is still being accepted.
var ErrUploadInProgress = models.Conflict("Files are still uploading. Please wait.")

// Manager validates batches, stores their blobs and appends them to the
// upload list once the acceptance delay has elapsed.
type Manager struct {
	mu     sync.RWMutex
	store  Store
	limits Limits
	delay  func(n int) time.Duration

	files  []models.FileInfo
	jobs   map[string]*Job
	active *Job
	cancel context.CancelFunc
}

// NewManager creates an upload manager. A nil delay accepts batches immediately.
func NewManager(store Store, limits Limits, delay func(n int) time.Duration) *Manager {
	if delay == nil {
		delay = func(int) time.Duration { return 0 }
	}
	return &Manager{
		store:  store,
		limits: limits,
		delay:  delay,
		jobs:   make(map[string]*Job),
	}
}

// LinearDelay returns min(base + perFile*n, ceiling).
func LinearDelay(base, perFile, ceiling time.Duration) func(n int) time.Duration {
	return func(n int) time.Duration {
		return min(base+perFile*time.Duration(n), ceiling)
	}
}

// Limits returns the configured batch limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// StartBatch validates and stores batch, then starts an acceptance job.
// Validation failures reject the whole batch and leave the list unchanged.
func (m *Manager) StartBatch(batch []Incoming, category *FileType) (Job, error) {
	if len(batch) == 0 {
		return Job{}, models.Invalid("Please select at least one file.")
	}
	if m.Uploading() {
		return Job{}, ErrUploadInProgress
	}

	infos := make([]models.FileInfo, len(batch))
	for i, in := range batch {
		infos[i] = in.info()
	}
	if err := ValidateBatch(infos, m.limits, category); err != nil {
		return Job{}, err
	}

	stored, err := m.storeAll(batch)
	if err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusUploading,
		FileCount: len(stored),
		Files:     stored,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		cancel()
		m.discard(stored)
		return Job{}, ErrUploadInProgress
	}
	m.jobs[job.ID] = job
	m.active = job
	m.cancel = cancel
	snap := job.snapshot()
	m.mu.Unlock()

	go m.processJob(ctx, job)

	return snap, nil
}

func (m *Manager) storeAll(batch []Incoming) ([]models.FileInfo, error) {
	stored := make([]models.FileInfo, 0, len(batch))
	for _, in := range batch {
		info, err := m.storeOne(in)
		if err != nil {
			m.discard(stored)
			return nil, fmt.Errorf("storing %s: %w", in.Name, err)
		}
		stored = append(stored, *info)
	}
	return stored, nil
}

func (m *Manager) storeOne(in Incoming) (*models.FileInfo, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return m.store.Save(in.Name, in.MIMEType, in.LastModified, rc)
}

func (m *Manager) discard(files []models.FileInfo) {
	for _, f := range files {
		if err := m.store.Delete(f.ID); err != nil {
			slog.Warn("failed to discard upload", "component", "upload", "file", f.ID, "error", err)
		}
	}
}

// processJob waits out the acceptance delay and then publishes the files.
func (m *Manager) processJob(ctx context.Context, job *Job) {
	short := job.ID[:8]
	wait := m.delay(job.FileCount)
	slog.Info("upload job started", "component", "upload", "job", short, "files", job.FileCount, "delay", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		m.markJobComplete(job)
		slog.Info("upload job complete", "component", "upload", "job", short, "files", job.FileCount)
	case <-ctx.Done():
		m.discard(job.Files)
		m.markJobCancelled(job)
		slog.Info("upload job cancelled", "component", "upload", "job", short)
	}
}

func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = append(m.files, job.Files...)
	m.finishLocked(job, StatusComplete)
}

func (m *Manager) markJobCancelled(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finishLocked(job, StatusCancelled)
}

func (m *Manager) finishLocked(job *Job, status Status) {
	job.Status = status
	now := time.Now()
	job.CompletedAt = &now
	if m.active == job {
		m.active = nil
		m.cancel = nil
	}
	close(job.done)
}

// CancelJob aborts the in-flight batch. Its blobs are discarded.
func (m *Manager) CancelJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Uploading reports whether a batch is in flight.
func (m *Manager) Uploading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

// Job retrieves a job by ID.
func (m *Manager) Job(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, models.NotFound("upload job", id)
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	snap, _ := m.Job(id)
	return snap, nil
}

// Files returns the upload list in acceptance order.
func (m *Manager) Files() []models.FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.files)
}

// File returns one entry of the upload list.
func (m *Manager) File(id string) (models.FileInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files {
		if f.ID == id {
			return f, true
		}
	}
	return models.FileInfo{}, false
}

// Open reads the blob of an uploaded file.
func (m *Manager) Open(id string) (io.ReadCloser, error) {
	if _, ok := m.File(id); !ok {
		return nil, models.NotFound("file", id)
	}
	return m.store.Open(id)
}

// Remove deletes one file from the list and its blob.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	i := slices.IndexFunc(m.files, func(f models.FileInfo) bool { return f.ID == id })
	if i < 0 {
		m.mu.Unlock()
		return models.NotFound("file", id)
	}
	m.files = slices.Delete(m.files, i, i+1)
	m.mu.Unlock()

	return m.store.Delete(id)
}

// Clear empties the list and deletes every blob. It returns how many files
// were removed.
func (m *Manager) Clear() int {
	m.mu.Lock()
	files := m.files
	m.files = nil
	m.mu.Unlock()

	m.discard(files)
	return len(files)
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
