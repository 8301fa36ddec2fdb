package upload

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	MIMEExcel        = "application/vnd.ms-excel"
	MIMEExcelOpenXML = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals, e.g. "0 Bytes", "1.5 KB", "10 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FileExtension returns the text after the last dot. Names without a dot,
// or whose only dot is the first character, have no extension.
func FileExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i+1:]
}

// IsCSV reports whether the file looks like CSV by MIME type or extension.
func IsCSV(name, mimeType string) bool {
	return mimeType == "text/csv" || strings.EqualFold(FileExtension(name), "csv")
}

// IsExcel reports whether the file looks like a spreadsheet workbook.
func IsExcel(name, mimeType string) bool {
	if mimeType == MIMEExcel || mimeType == MIMEExcelOpenXML {
		return true
	}
	return slices.Contains([]string{"xls", "xlsx"}, strings.ToLower(FileExtension(name)))
}

// FileID builds a tracking id from name, size and last-modified time. A zero
// lastModified falls back to now.
func FileID(name string, size int64, lastModified, now time.Time) string {
	ts := lastModified
	if ts.IsZero() {
		ts = now
	}
	return fmt.Sprintf("%s_%d_%d", name, size, ts.UnixMilli())
}
