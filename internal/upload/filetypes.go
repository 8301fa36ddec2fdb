package upload

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileType is an upload category: an allow-list of MIME types and extensions.
type FileType struct {
	Key         string   `yaml:"key" json:"key"`
	Description string   `yaml:"description" json:"description"`
	Types       []string `yaml:"types" json:"types"`
	Extensions  []string `yaml:"extensions" json:"extensions"`
}

// Accepts reports whether either the MIME type or the extension of name is
// on the allow-list.
func (ft FileType) Accepts(name, mimeType string) bool {
	if slices.Contains(ft.Types, mimeType) {
		return true
	}
	return slices.Contains(ft.Extensions, strings.ToLower(FileExtension(name)))
}

// ExpectedExtensions renders the extension list as ".a, .b".
func (ft FileType) ExpectedExtensions() string {
	exts := make([]string, len(ft.Extensions))
	for i, e := range ft.Extensions {
		exts[i] = "." + e
	}
	return strings.Join(exts, ", ")
}

// FileTypes is an ordered set of categories.
type FileTypes []FileType

// Lookup returns the category with the given key.
func (fts FileTypes) Lookup(key string) (FileType, bool) {
	for _, ft := range fts {
		if ft.Key == key {
			return ft, true
		}
	}
	return FileType{}, false
}

// DefaultFileTypes returns the built-in categories.
func DefaultFileTypes() FileTypes {
	return FileTypes{
		{
			Key:         "csv",
			Description: "CSV and Excel files",
			Types:       []string{"text/csv", MIMEExcel, MIMEExcelOpenXML},
			Extensions:  []string{"csv", "xls", "xlsx"},
		},
		{
			Key:         "txt",
			Description: "Text files",
			Types:       []string{"text/plain"},
			Extensions:  []string{"txt"},
		},
		{
			Key:         "pdf",
			Description: "PDF documents",
			Types:       []string{"application/pdf"},
			Extensions:  []string{"pdf"},
		},
		{
			Key:         "image",
			Description: "Image files",
			Types:       []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "image/bmp"},
			Extensions:  []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"},
		},
	}
}

type fileTypesDoc struct {
	FileTypes FileTypes `yaml:"fileTypes"`
}

// LoadFileTypes reads categories from a YAML file. An empty path returns the
// built-in set.
func LoadFileTypes(path string) (FileTypes, error) {
	if path == "" {
		return DefaultFileTypes(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file types: %w", err)
	}
	return ParseFileTypes(data)
}

// ParseFileTypes decodes a YAML document of the form
//
//	fileTypes:
//	  - key: csv
//	    description: CSV and Excel files
//	    types: [text/csv]
//	    extensions: [csv]
func ParseFileTypes(data []byte) (FileTypes, error) {
	var doc fileTypesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing file types: %w", err)
	}
	if len(doc.FileTypes) == 0 {
		return nil, fmt.Errorf("no file types defined")
	}
	seen := make(map[string]bool, len(doc.FileTypes))
	for i, ft := range doc.FileTypes {
		if ft.Key == "" {
			return nil, fmt.Errorf("file type %d: missing key", i)
		}
		if seen[ft.Key] {
			return nil, fmt.Errorf("file type %q defined twice", ft.Key)
		}
		seen[ft.Key] = true
		for j, e := range ft.Extensions {
			doc.FileTypes[i].Extensions[j] = strings.ToLower(strings.TrimPrefix(e, "."))
		}
	}
	return doc.FileTypes, nil
}
