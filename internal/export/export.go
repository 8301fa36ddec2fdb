// Package export writes a rendered table view to spreadsheet formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/lab-automation/backend/internal/table"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Data"

// ParseFormat resolves a format name. An empty name means xlsx.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(FormatXLSX):
		return FormatXLSX, nil
	case string(FormatCSV):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format: %s", name)
}

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns the download name for base.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Write writes page in format f.
func Write(w io.Writer, f Format, page table.Page) error {
	if f == FormatCSV {
		return WriteCSV(w, page)
	}
	return WriteXLSX(w, page)
}

// WriteCSV writes the header row followed by every row of page.
func WriteCSV(w io.Writer, page table.Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(page.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(page.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteXLSX writes page as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, page table.Page) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(page.Columns))
	for i, c := range page.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(page.Columns) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
			return fmt.Errorf("header style: %w", err)
		}
	}

	for i, row := range page.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
