// Package process turns uploaded files plus column names into a dataset.
// A Processor is the one suspension point of a submit: the simulated one
// generates rows locally, the remote one posts the payload to a backend.
package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/upload"
)

// Request is the input of one submit.
type Request struct {
	Files   []models.FileInfo
	Columns []string
	// Open reads the blob of one of Files by ID.
	Open func(id string) (io.ReadCloser, error)
}

// ProgressFunc receives progress in percent, 0 to 100. Calls are
// non-decreasing.
type ProgressFunc func(percent int)

// Processor produces a dataset for a request. Process must return promptly
// with ctx.Err() once ctx is cancelled.
type Processor interface {
	Name() string
	Process(ctx context.Context, req Request, progress ProgressFunc) (models.Dataset, error)
}

// LogPayload writes a summary of what a submit sends over the wire.
func LogPayload(logger *slog.Logger, req Request, meta models.SubmissionMetadata, endpoint string) {
	files := make([]string, len(req.Files))
	for i, f := range req.Files {
		files[i] = fmt.Sprintf("%s (%s, %s, modified %s)",
			f.Name, upload.FormatFileSize(f.Size), f.MIMEType, f.LastModified.UTC().Format(time.RFC3339))
	}
	logger.Info("submission payload",
		"component", "process",
		"files", files,
		"columns", req.Columns,
		"fileCount", meta.FileCount,
		"totalSize", meta.TotalSize,
		"timestamp", meta.Timestamp.Format(time.RFC3339),
		"endpoint", endpoint,
	)
}
