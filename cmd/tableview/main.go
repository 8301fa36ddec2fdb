// Command tableview generates a mock dataset and prints one page of it.
//
//	tableview -columns "name,age,score" -files 2 -filter age=5 -sort score -desc -page 1
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/lab-automation/backend/internal/mockgen"
	"github.com/lab-automation/backend/internal/table"
)

type filterFlags map[string]string

func (f filterFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f filterFlags) Set(s string) error {
	col, val, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return fmt.Errorf("filter must be column=value, got %q", s)
	}
	f[col] = val
	return nil
}

func main() {
	columns := flag.String("columns", "name,age,email,score", "comma-separated column names")
	files := flag.Int("files", 1, "number of uploaded files to simulate")
	sortKey := flag.String("sort", "", "column to sort by")
	desc := flag.Bool("desc", false, "sort descending")
	page := flag.Int("page", 1, "page to show")
	pageSize := flag.Int("page-size", table.DefaultPageSize, "rows per page")
	seed := flag.Uint64("seed", 0, "random seed; 0 picks one")
	filters := filterFlags{}
	flag.Var(filters, "filter", "column=value filter, repeatable")
	flag.Parse()

	if err := run(*columns, *files, filters, *sortKey, *desc, *page, *pageSize, *seed); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(columns string, files int, filters filterFlags, sortKey string, desc bool, page, pageSize int, seed uint64) error {
	var cols []string
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	gen := mockgen.Generator{Now: time.Now}
	if seed != 0 {
		gen.Rand = rand.New(rand.NewPCG(seed, seed))
	}
	ds, err := gen.Generate(cols, files)
	if err != nil {
		return err
	}

	cfg := table.DefaultConfig()
	cfg.PageSize = pageSize
	state := table.NewState()
	for col, val := range filters {
		state = state.WithFilter(col, val)
	}
	if sortKey != "" {
		state.Sort = table.Sort{Key: sortKey, Direction: table.Asc}
		if desc {
			state.Sort.Direction = table.Desc
		}
	}
	state = state.WithPage(page)

	view := table.NewView(table.NewMemorySource(ds), cfg)
	p, _, err := view.Render(context.Background(), state)
	if err != nil {
		return err
	}
	fmt.Print(renderPage(p))
	return nil
}
