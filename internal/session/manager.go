// Package session runs submits in the background and keeps their results
// queryable until they age out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lab-automation/backend/internal/datastore"
	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/process"
	"github.com/lab-automation/backend/internal/table"
)

// DefaultMaxSessions limits retained sessions to bound memory use.
const DefaultMaxSessions = 10

// Backend selects where a finished dataset is indexed for view queries.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendDuckDB Backend = "duckdb"
)

// Options configures a Manager.
type Options struct {
	TempDir     string
	Backend     Backend
	MaxSessions int
}

// Manager handles processing sessions.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	processor   process.Processor
	tempDir     string
	backend     Backend
	maxSessions int
}

// SessionState holds the session metadata and, once complete, its data.
type SessionState struct {
	Session      *models.ProcessSession
	Dataset      models.Dataset
	Source       table.Source
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager that runs submits through processor.
func NewManager(processor process.Processor, opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Backend == "" {
		opts.Backend = BackendMemory
	}
	if opts.Backend == BackendDuckDB {
		if opts.TempDir == "" {
			opts.TempDir = os.TempDir()
		}
		os.MkdirAll(opts.TempDir, 0755)
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		processor:   processor,
		tempDir:     opts.TempDir,
		backend:     opts.Backend,
		maxSessions: opts.MaxSessions,
	}
}

// Start begins processing req in the background. onDone, when set, is called
// exactly once with the final session, outside any lock.
func (m *Manager) Start(req process.Request, onDone func(models.ProcessSession)) (models.ProcessSession, error) {
	if len(req.Files) == 0 || len(req.Columns) == 0 {
		return models.ProcessSession{}, models.Invalid("nothing to process")
	}

	m.cleanupOldSessionsIfNeeded()

	fileIDs := make([]string, len(req.Files))
	for i, f := range req.Files {
		fileIDs[i] = f.ID
	}

	sessionID := uuid.New().String()
	session := models.NewProcessSession(sessionID, fileIDs, req.Columns)
	session.ProcessorName = m.processor.Name()

	ctx, cancel := context.WithCancel(context.Background())
	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	snap := session.Clone()
	m.mu.Unlock()

	go m.runProcess(ctx, sessionID, req, onDone)

	return snap, nil
}

func (m *Manager) runProcess(ctx context.Context, sessionID string, req process.Request, onDone func(models.ProcessSession)) {
	start := time.Now()
	short := sessionID[:8]
	slog.Info("processing started", "component", "session", "session", short,
		"processor", m.processor.Name(), "files", len(req.Files), "columns", len(req.Columns))

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Status = models.SessionStatusProcessing
	}
	m.mu.Unlock()

	progress := func(p int) {
		p = max(0, min(p, 100))
		m.mu.Lock()
		defer m.mu.Unlock()
		if state, ok := m.sessions[sessionID]; ok && p > state.Session.Progress {
			state.Session.Progress = p
		}
	}

	ds, err := m.safeProcess(ctx, req, progress)

	var src table.Source
	if err == nil {
		src = m.newSource(sessionID, ds)
	}

	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		if src != nil {
			src.Close()
		}
		return
	}

	now := time.Now()
	s := state.Session
	s.CompletedAt = &now
	s.ProcessingTimeMs = time.Since(start).Milliseconds()
	switch {
	case err == nil:
		s.Status = models.SessionStatusComplete
		s.Progress = 100
		s.RowCount = ds.Len()
		state.Dataset = ds
		state.Source = src
	case errors.Is(err, context.Canceled):
		s.Status = models.SessionStatusCancelled
		s.Error = "Processing cancelled."
	default:
		s.Status = models.SessionStatusError
		s.Error = err.Error()
	}
	state.cancel()
	close(state.done)
	final := s.Clone()
	m.mu.Unlock()

	switch final.Status {
	case models.SessionStatusComplete:
		slog.Info("processing complete", "component", "session", "session", short,
			"rows", final.RowCount, "elapsed_ms", final.ProcessingTimeMs)
	case models.SessionStatusCancelled:
		slog.Info("processing cancelled", "component", "session", "session", short)
	default:
		slog.Warn("processing failed", "component", "session", "session", short, "error", err)
	}

	if onDone != nil {
		onDone(final)
	}
}

// safeProcess recovers from processor panics to prevent a backend crash.
func (m *Manager) safeProcess(ctx context.Context, req process.Request, progress process.ProgressFunc) (ds models.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()
	return m.processor.Process(ctx, req, progress)
}

func (m *Manager) newSource(sessionID string, ds models.Dataset) table.Source {
	if m.backend == BackendDuckDB {
		store, err := datastore.NewDuckStore(m.tempDir, sessionID, ds)
		if err == nil {
			return store
		}
		slog.Warn("duckdb store unavailable, using memory", "component", "session",
			"session", sessionID[:8], "error", err)
	}
	return table.NewMemorySource(ds)
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (models.ProcessSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return models.ProcessSession{}, false
	}
	return state.Session.Clone(), true
}

// Done returns a channel closed when the session finishes.
func (m *Manager) Done(id string) (<-chan struct{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.done, true
}

// Cancel aborts an in-flight session. It returns false when the session is
// unknown or already finished.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status.Finished() {
		return false
	}
	state.cancel()
	return true
}

// Source returns the query source of a completed session and marks it used.
func (m *Manager) Source(id string) (table.Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok || state.Source == nil {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state.Source, true
}

// Dataset returns the rows of a completed session.
func (m *Manager) Dataset(id string) (models.Dataset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Session.Status != models.SessionStatusComplete {
		return models.Dataset{}, false
	}
	return state.Dataset, true
}

// TouchSession updates the last accessed time for a session (keep-alive).
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Close discards a session. An in-flight session is cancelled first.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	state.cancel()
	if state.Source != nil {
		state.Source.Close()
	}
	return true
}

// CloseAll discards every session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// Len returns the number of retained sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupOldSessionsIfNeeded evicts finished sessions, least recently used
// first, until there is room for one more.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	type candidate struct {
		id    string
		state *SessionState
	}
	var finished []candidate
	for id, state := range m.sessions {
		if state.Session.Status.Finished() {
			finished = append(finished, candidate{id, state})
		}
	}
	slices.SortFunc(finished, func(a, b candidate) int {
		return a.state.LastAccessed.Compare(b.state.LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		c := finished[i]
		if c.state.Source != nil {
			c.state.Source.Close()
		}
		delete(m.sessions, c.id)
		slog.Info("evicted session to free memory", "component", "session", "session", c.id[:8])
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)

	for id, state := range m.sessions {
		if !state.Session.Status.Finished() {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			if state.Source != nil {
				state.Source.Close()
			}
			delete(m.sessions, id)
			slog.Info("cleaned up aged session", "component", "session", "session", id[:8],
				"idle", time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}
