package models

import "time"

// SessionStatus represents the status of a processing session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s SessionStatus) Finished() bool {
	return s == SessionStatusComplete || s == SessionStatusError || s == SessionStatusCancelled
}

// ProcessSession represents one submit: files plus column names turned into a dataset.
type ProcessSession struct {
	ID               string        `json:"id"`
	Status           SessionStatus `json:"status"`
	Progress         int           `json:"progress"` // 0-100
	FileIDs          []string      `json:"fileIds"`
	ColumnNames      []string      `json:"columnNames"`
	RowCount         int           `json:"rowCount,omitempty"`
	ProcessorName    string        `json:"processorName,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

// NewProcessSession creates a new ProcessSession in pending status.
func NewProcessSession(id string, fileIDs, columns []string) *ProcessSession {
	return &ProcessSession{
		ID:          id,
		Status:      SessionStatusPending,
		FileIDs:     append([]string(nil), fileIDs...),
		ColumnNames: append([]string(nil), columns...),
		CreatedAt:   time.Now(),
	}
}

// Clone returns a copy that is safe to hand out of a lock.
func (s *ProcessSession) Clone() ProcessSession {
	c := *s
	c.FileIDs = append([]string(nil), s.FileIDs...)
	c.ColumnNames = append([]string(nil), s.ColumnNames...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
