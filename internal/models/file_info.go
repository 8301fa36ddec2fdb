package models

import "time"

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID           string    `json:"id" msgpack:"id"`
	Name         string    `json:"name" msgpack:"name"`
	Size         int64     `json:"size" msgpack:"size"`
	MIMEType     string    `json:"type" msgpack:"type"`
	LastModified time.Time `json:"lastModified" msgpack:"lastModified"`
	UploadedAt   time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status       string    `json:"status" msgpack:"status"` // "stored", "uploaded"
}

// TotalSize sums the byte sizes of files.
func TotalSize(files []FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
