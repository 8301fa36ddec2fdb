package upload

import (
	"slices"
	"strings"

	"github.com/lab-automation/backend/internal/models"
)

// Limits bounds a single upload batch.
type Limits struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
}

// DefaultAllowedTypes is the MIME allow-list used when no category is selected.
var DefaultAllowedTypes = []string{
	"text/csv",
	MIMEExcel,
	MIMEExcelOpenXML,
	"application/json",
}

// DefaultLimits returns the standard limits: 10 MB per file, 10 files.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  10 * 1024 * 1024,
		MaxFiles:     10,
		AllowedTypes: slices.Clone(DefaultAllowedTypes),
	}
}

// ValidateBatch checks a batch as a whole. The first failure rejects the
// entire batch. The count is checked first, then size and type per file in
// order. A nil category falls back to the global MIME allow-list.
func ValidateBatch(files []models.FileInfo, limits Limits, category *FileType) error {
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return models.Invalid("Too many files. Maximum allowed: %d.", limits.MaxFiles)
	}
	for _, f := range files {
		if err := ValidateFile(f, limits, category); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFile checks one file's size and type.
func ValidateFile(f models.FileInfo, limits Limits, category *FileType) error {
	if limits.MaxFileSize > 0 && f.Size > limits.MaxFileSize {
		return models.Invalid("File \"%s\" is too large. Maximum size is %s.", f.Name, FormatFileSize(limits.MaxFileSize))
	}
	if category != nil {
		if !category.Accepts(f.Name, f.MIMEType) {
			return models.Invalid("File \"%s\" is not a valid %s. Expected: %s.", f.Name, category.Description, category.ExpectedExtensions())
		}
		return nil
	}
	if !slices.Contains(limits.AllowedTypes, f.MIMEType) {
		return models.Invalid("File type \"%s\" is not supported. Allowed types: %s.", f.MIMEType, strings.Join(limits.AllowedTypes, ", "))
	}
	return nil
}
