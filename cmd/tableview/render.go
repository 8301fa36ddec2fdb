package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lab-automation/backend/internal/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const maxCellWidth = 32

func columnWidths(p table.Page) []int {
	widths := make([]int, len(p.Columns))
	for i, c := range p.Columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range p.Rows {
		for i, v := range row {
			widths[i] = max(widths[i], lipgloss.Width(v))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxCellWidth)
	}
	return widths
}

func truncate(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s
	}
	r := []rune(s)
	return string(r[:w-1]) + "."
}

func sortMarker(p table.Page, column string) string {
	if p.Sort.Key != column {
		return ""
	}
	if p.Sort.Direction == table.Desc {
		return " v"
	}
	return " ^"
}

// renderPage draws a page as a bordered text table with a status line.
func renderPage(p table.Page) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" Generated Data"))
	b.WriteString("\n")

	if len(p.Columns) == 0 {
		b.WriteString(dimStyle.Render(" (no columns)\n"))
		return b.String()
	}

	widths := columnWidths(p)
	for i, c := range p.Columns {
		name := truncate(c+sortMarker(p, c), widths[i]+2)
		b.WriteString(headerStyle.Render(fmt.Sprintf(" %-*s ", widths[i]+2, name)))
		if i < len(p.Columns)-1 {
			b.WriteString(dimStyle.Render("│"))
		}
	}
	b.WriteString("\n")

	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+4)))
		if i < len(widths)-1 {
			b.WriteString(dimStyle.Render("┼"))
		}
	}
	b.WriteString("\n")

	if p.Empty {
		b.WriteString(dimStyle.Render(" No data to display"))
		b.WriteString("\n")
	}
	for _, row := range p.Rows {
		for i, v := range row {
			b.WriteString(fmt.Sprintf(" %-*s ", widths[i]+2, truncate(v, widths[i])))
			if i < len(row)-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString("\n")
	}

	status := fmt.Sprintf(" %d rows", p.TotalRows)
	if p.ShowPagination {
		status = fmt.Sprintf(" page %d of %d  %d rows", p.Page, p.TotalPages, p.TotalRows)
	}
	for col, val := range p.Filters {
		status += fmt.Sprintf("  %s~%q", col, val)
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}
