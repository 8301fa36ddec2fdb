package process

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"time"

	"github.com/lab-automation/backend/internal/models"
)

// Multipart field names of a submission.
const (
	FieldFiles       = "files"
	FieldColumnNames = "columnNames"
	FieldMetadata    = "metadata"
)

// BuildPayload writes the multipart submission body: every blob under
// "files", the column names as a JSON array and the metadata as a JSON
// object. It returns the body and its Content-Type.
func BuildPayload(req Request, now time.Time) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for _, f := range req.Files {
		if err := writeFile(w, req, f); err != nil {
			return nil, "", err
		}
	}

	columns, err := json.Marshal(req.Columns)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(FieldColumnNames, string(columns)); err != nil {
		return nil, "", err
	}

	meta, err := json.Marshal(models.NewSubmissionMetadata(req.Files, now))
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(FieldMetadata, string(meta)); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, req Request, f models.FileInfo) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldFiles, escapeQuotes(f.Name)))
	contentType := f.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if req.Open == nil {
		return fmt.Errorf("no reader for file %s", f.ID)
	}
	rc, err := req.Open(f.ID)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("writing %s: %w", f.Name, err)
	}
	return nil
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Submission is a decoded submission payload.
type Submission struct {
	Columns  []string
	Metadata models.SubmissionMetadata
	Files    []*multipart.FileHeader
}

// ParseSubmission decodes a parsed multipart form. At least one file and one
// column name are required.
func ParseSubmission(form *multipart.Form) (Submission, error) {
	var sub Submission
	if form == nil {
		return sub, models.Invalid("Invalid request. Please check your files and column names.")
	}
	sub.Files = form.File[FieldFiles]

	if v := form.Value[FieldColumnNames]; len(v) > 0 {
		if err := json.Unmarshal([]byte(v[0]), &sub.Columns); err != nil {
			return sub, models.Invalid("columnNames must be a JSON array of strings")
		}
	}
	if v := form.Value[FieldMetadata]; len(v) > 0 {
		if err := json.Unmarshal([]byte(v[0]), &sub.Metadata); err != nil {
			return sub, models.Invalid("metadata must be a JSON object")
		}
	}

	if len(sub.Files) == 0 || len(sub.Columns) == 0 {
		return sub, models.Invalid("Invalid request. Please check your files and column names.")
	}
	return sub, nil
}
