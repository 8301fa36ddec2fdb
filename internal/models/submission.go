package models

import "time"

// SubmissionMetadata is the JSON metadata part of a processing request.
type SubmissionMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	FileCount int       `json:"fileCount"`
	TotalSize int64     `json:"totalSize"`
	Filenames []string  `json:"filenames"`
	Filesizes []int64   `json:"filesizes"`
}

// NewSubmissionMetadata describes files as they would cross the wire.
func NewSubmissionMetadata(files []FileInfo, now time.Time) SubmissionMetadata {
	meta := SubmissionMetadata{
		Timestamp: now.UTC(),
		FileCount: len(files),
		TotalSize: TotalSize(files),
		Filenames: make([]string, 0, len(files)),
		Filesizes: make([]int64, 0, len(files)),
	}
	for _, f := range files {
		meta.Filenames = append(meta.Filenames, f.Name)
		meta.Filesizes = append(meta.Filesizes, f.Size)
	}
	return meta
}
