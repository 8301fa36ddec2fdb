// Package workspace holds the state of one user's table-generation workspace
// and the validated transitions between its states.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/process"
	"github.com/lab-automation/backend/internal/table"
	"github.com/lab-automation/backend/internal/upload"
)

// Uploads is the upload list the workspace delegates to.
type Uploads interface {
	StartBatch(batch []upload.Incoming, category *upload.FileType) (upload.Job, error)
	Uploading() bool
	Files() []models.FileInfo
	Remove(id string) error
	Clear() int
	Open(id string) (io.ReadCloser, error)
}

// Sessions runs submits.
type Sessions interface {
	Start(req process.Request, onDone func(models.ProcessSession)) (models.ProcessSession, error)
	Get(id string) (models.ProcessSession, bool)
	Cancel(id string) bool
	Source(id string) (table.Source, bool)
	Close(id string) bool
}

// Options configures a Workspace.
type Options struct {
	FileTypes       upload.FileTypes
	DefaultFileType string
	DefaultTheme    Theme
	ToastDuration   time.Duration
	Table           table.Config
	Now             func() time.Time
}

// DefaultOptions returns the standard workspace settings.
func DefaultOptions() Options {
	return Options{
		FileTypes:       upload.DefaultFileTypes(),
		DefaultFileType: "csv",
		DefaultTheme:    ThemeForestGreen,
		ToastDuration:   3 * time.Second,
		Table:           table.DefaultConfig(),
		Now:             time.Now,
	}
}

const (
	msgNoFilesNoColumns = "Please upload at least one file and add at least one column name!"
	msgNoFiles          = "Please upload at least one file before submitting!"
	msgNoColumns        = "Please add at least one column name before submitting!"
	msgSubmitFailed     = "Failed to process files. Please try again."
	msgSubmitSucceeded  = "Files processed successfully! Generated %d rows of data."
)

// Workspace is the state store. All methods are safe for concurrent use.
type Workspace struct {
	mu       sync.Mutex
	uploads  Uploads
	sessions Sessions
	opts     Options

	columns      []string
	fileType     string
	theme        Theme
	notification *Notification

	submitting   bool
	submitID     string
	lastProgress int

	tableSession string
	view         table.State
}

// New creates a workspace.
func New(uploads Uploads, sessions Sessions, opts Options) *Workspace {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.FileTypes) == 0 {
		opts.FileTypes = upload.DefaultFileTypes()
	}
	if !opts.DefaultTheme.Valid() {
		opts.DefaultTheme = ThemeForestGreen
	}
	return &Workspace{
		uploads:  uploads,
		sessions: sessions,
		opts:     opts,
		fileType: opts.DefaultFileType,
		theme:    opts.DefaultTheme,
		view:     table.NewState(),
	}
}

// notifyLocked replaces the current notification.
func (w *Workspace) notifyLocked(kind NotificationKind, message string) {
	w.notification = &Notification{
		Message:   message,
		Kind:      kind,
		ExpiresAt: w.opts.Now().Add(w.opts.ToastDuration),
	}
}

// reject records a user-facing error as the notification and returns it.
func (w *Workspace) reject(err error) error {
	if ue, ok := models.AsUserError(err); ok {
		w.notifyLocked(NotifyError, ue.Message)
		slog.Info("action rejected", "component", "workspace", "reason", ue.Message)
	} else {
		w.notifyLocked(NotifyError, err.Error())
		slog.Error("action failed", "component", "workspace", "error", err)
	}
	return err
}

// Notification returns the live notification, if any.
func (w *Workspace) Notification() *Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.liveNotificationLocked()
}

func (w *Workspace) liveNotificationLocked() *Notification {
	if !w.notification.Live(w.opts.Now()) {
		return nil
	}
	n := *w.notification
	return &n
}

// AddColumn appends a trimmed column name. Exact duplicates are rejected.
func (w *Workspace) AddColumn(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return w.reject(models.Invalid("Column name cannot be empty."))
	}
	if slices.Contains(w.columns, trimmed) {
		return w.reject(models.Invalid("Column \"%s\" already exists!", trimmed))
	}
	w.columns = append(w.columns, trimmed)
	return nil
}

// RemoveColumn deletes a column name.
func (w *Workspace) RemoveColumn(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.Index(w.columns, name)
	if i < 0 {
		return models.NotFound("column", name)
	}
	w.columns = slices.Delete(w.columns, i, i+1)
	return nil
}

// Columns returns the column names in insertion order.
func (w *Workspace) Columns() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.columns)
}

// FileTypes returns the selectable upload categories.
func (w *Workspace) FileTypes() upload.FileTypes {
	return w.opts.FileTypes
}

// SetFileType selects the upload category used for validation.
func (w *Workspace) SetFileType(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.opts.FileTypes.Lookup(key); !ok {
		return w.reject(models.Invalid("Unknown file type \"%s\".", key))
	}
	w.fileType = key
	return nil
}

// SetTheme selects the color scheme.
func (w *Workspace) SetTheme(theme Theme) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !theme.Valid() {
		return w.reject(models.Invalid("Unknown theme \"%s\".", theme))
	}
	w.theme = theme
	return nil
}

// UploadFiles validates batch against the selected category and starts
// accepting it.
func (w *Workspace) UploadFiles(batch []upload.Incoming) (upload.Job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var category *upload.FileType
	if ft, ok := w.opts.FileTypes.Lookup(w.fileType); ok {
		category = &ft
	}
	job, err := w.uploads.StartBatch(batch, category)
	if err != nil {
		return upload.Job{}, w.reject(err)
	}
	return job, nil
}

// RemoveFile deletes one uploaded file.
func (w *Workspace) RemoveFile(id string) error {
	return w.uploads.Remove(id)
}

// ClearFiles deletes every uploaded file.
func (w *Workspace) ClearFiles() int {
	return w.uploads.Clear()
}

// Files returns the upload list.
func (w *Workspace) Files() []models.FileInfo {
	return w.uploads.Files()
}

// Submit starts processing the uploaded files with the current columns. It
// is rejected unless the workspace is idle.
func (w *Workspace) Submit() (models.ProcessSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return models.ProcessSession{}, w.reject(models.Conflict("Files are already being processed."))
	}
	if w.uploads.Uploading() {
		return models.ProcessSession{}, w.reject(models.Conflict("Please wait for the upload to finish."))
	}

	files := w.uploads.Files()
	switch {
	case len(files) == 0 && len(w.columns) == 0:
		return models.ProcessSession{}, w.reject(models.Invalid(msgNoFilesNoColumns))
	case len(files) == 0:
		return models.ProcessSession{}, w.reject(models.Invalid(msgNoFiles))
	case len(w.columns) == 0:
		return models.ProcessSession{}, w.reject(models.Invalid(msgNoColumns))
	}

	req := process.Request{
		Files:   files,
		Columns: slices.Clone(w.columns),
		Open:    w.uploads.Open,
	}

	// onDone may run before Start returns; it takes the lock, so it waits
	// until this method has recorded the session.
	sess, err := w.sessions.Start(req, w.onSubmitDone)
	if err != nil {
		return models.ProcessSession{}, w.reject(err)
	}

	w.submitting = true
	w.submitID = sess.ID
	w.lastProgress = 0
	return sess, nil
}

func (w *Workspace) onSubmitDone(s models.ProcessSession) {
	w.mu.Lock()
	if !w.submitting || w.submitID != s.ID {
		w.mu.Unlock()
		return
	}
	w.submitting = false
	w.submitID = ""
	w.lastProgress = s.Progress

	var stale string
	switch s.Status {
	case models.SessionStatusComplete:
		if w.tableSession != "" && w.tableSession != s.ID {
			stale = w.tableSession
		}
		w.tableSession = s.ID
		w.view = table.NewState()
		w.notifyLocked(NotifySuccess, fmt.Sprintf(msgSubmitSucceeded, s.RowCount))
	case models.SessionStatusCancelled:
		w.notifyLocked(NotifyInfo, "Processing cancelled.")
	default:
		msg := s.Error
		if msg == "" {
			msg = msgSubmitFailed
		}
		w.notifyLocked(NotifyError, msg)
	}
	w.mu.Unlock()

	if stale != "" {
		w.sessions.Close(stale)
	}
}

// CancelSubmit aborts the in-flight submit.
func (w *Workspace) CancelSubmit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.submitting {
		return models.Conflict("No submission in progress.")
	}
	w.sessions.Cancel(w.submitID)
	return nil
}

// Submitting reports whether a submit is in flight and its session ID.
func (w *Workspace) Submitting() (bool, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting, w.submitID
}

// tableSourceLocked returns the source of the visible table.
func (w *Workspace) tableSourceLocked() (table.Source, error) {
	if w.tableSession == "" {
		return nil, models.Conflict("No table to show. Submit files first.")
	}
	src, ok := w.sessions.Source(w.tableSession)
	if !ok {
		w.tableSession = ""
		return nil, models.Conflict("The table is no longer available. Please submit again.")
	}
	return src, nil
}

// SetFilter sets the filter text for column and returns to page 1. It does
// nothing when filtering is disabled.
func (w *Workspace) SetFilter(column, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := w.tableSourceLocked()
	if err != nil {
		return err
	}
	if !w.opts.Table.EnableFiltering {
		return nil
	}
	if !slices.Contains(src.Columns(), column) {
		return models.NotFound("column", column)
	}
	w.view = w.view.WithFilter(column, value)
	return nil
}

// ClearFilter removes the filter for column.
func (w *Workspace) ClearFilter(column string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.tableSourceLocked(); err != nil {
		return err
	}
	w.view = w.view.WithoutFilter(column)
	return nil
}

// ToggleSort sorts by column, flipping the direction when it is already the
// ascending sort key. It does nothing when sorting is disabled.
func (w *Workspace) ToggleSort(column string) (table.Sort, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := w.tableSourceLocked()
	if err != nil {
		return table.Sort{}, err
	}
	if !w.opts.Table.EnableSorting {
		return w.view.Sort, nil
	}
	if !slices.Contains(src.Columns(), column) {
		return table.Sort{}, models.NotFound("column", column)
	}
	w.view = w.view.ToggleSort(column)
	return w.view.Sort, nil
}

// GoToPage moves to page p, clamped to the available pages.
func (w *Workspace) GoToPage(ctx context.Context, p int) (table.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.view = w.view.WithPage(p)
	return w.renderLocked(ctx)
}

// RenderTable renders the current page and stores the clamped page number.
func (w *Workspace) RenderTable(ctx context.Context) (table.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.renderLocked(ctx)
}

func (w *Workspace) renderLocked(ctx context.Context) (table.Page, error) {
	src, err := w.tableSourceLocked()
	if err != nil {
		return table.Page{}, err
	}
	page, next, err := table.NewView(src, w.opts.Table).Render(ctx, w.view)
	if err != nil {
		return table.Page{}, err
	}
	w.view = next
	return page, nil
}

// ExportView renders every filtered and sorted row, ignoring pagination.
func (w *Workspace) ExportView(ctx context.Context) (table.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := w.tableSourceLocked()
	if err != nil {
		return table.Page{}, err
	}
	cfg := w.opts.Table
	cfg.EnablePagination = false
	page, _, err := table.NewView(src, cfg).Render(ctx, w.view)
	return page, err
}

// CloseTable hides the table and discards its dataset.
func (w *Workspace) CloseTable() error {
	w.mu.Lock()
	id := w.tableSession
	w.tableSession = ""
	w.view = table.NewState()
	w.mu.Unlock()

	if id == "" {
		return models.Conflict("No table to close.")
	}
	w.sessions.Close(id)
	return nil
}

// TableConfig returns the display configuration.
func (w *Workspace) TableConfig() table.Config {
	return w.opts.Table
}

// Snapshot is the externally visible workspace state.
type Snapshot struct {
	Columns        []string          `json:"columns"`
	Files          []models.FileInfo `json:"files"`
	TotalSize      int64             `json:"totalSize"`
	FileType       string            `json:"fileType"`
	Theme          Theme             `json:"theme"`
	Uploading      bool              `json:"uploading"`
	Submitting     bool              `json:"submitting"`
	Progress       int               `json:"progress"`
	SessionID      string            `json:"sessionId,omitempty"`
	TableVisible   bool              `json:"tableVisible"`
	TableSessionID string            `json:"tableSessionId,omitempty"`
	View           table.State       `json:"view"`
	Table          table.Config      `json:"table"`
	Notification   *Notification     `json:"notification,omitempty"`
}

// Snapshot returns a consistent copy of the workspace state.
func (w *Workspace) Snapshot() Snapshot {
	files := w.uploads.Files()
	uploading := w.uploads.Uploading()

	w.mu.Lock()
	defer w.mu.Unlock()

	progress := w.lastProgress
	if w.submitting {
		if s, ok := w.sessions.Get(w.submitID); ok {
			progress = s.Progress
		}
	}

	return Snapshot{
		Columns:        slices.Clone(w.columns),
		Files:          files,
		TotalSize:      models.TotalSize(files),
		FileType:       w.fileType,
		Theme:          w.theme,
		Uploading:      uploading,
		Submitting:     w.submitting,
		Progress:       progress,
		SessionID:      w.submitID,
		TableVisible:   w.tableSession != "",
		TableSessionID: w.tableSession,
		View:           w.view,
		Table:          w.opts.Table,
		Notification:   w.liveNotificationLocked(),
	}
}
