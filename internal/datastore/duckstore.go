// Package datastore holds DuckDB-backed table sources.
package datastore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/table"
	"github.com/marcboeker/go-duckdb"
)

// DuckStore indexes a dataset in a temporary DuckDB file and answers view
// queries with SQL. Row values are still served from the in-memory dataset;
// the database holds only the filter and sort keys.
type DuckStore struct {
	db      *sql.DB
	dbPath  string
	ds      models.Dataset
	colIdx  map[string]int
	numeric []bool // column sorts numerically

	// Cache for filtered counts keyed by the WHERE clause and its args
	countCache   map[string]int
	countCacheMu sync.RWMutex

	// Limits concurrent queries
	querySem chan struct{}
}

var _ table.Source = (*DuckStore)(nil)

// NewDuckStore creates a store for ds in tempDir.
func NewDuckStore(tempDir, sessionID string, ds models.Dataset) (*DuckStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("session_%s.duckdb", sessionID))
	return NewDuckStoreAtPath(dbPath, ds)
}

// NewDuckStoreAtPath creates a store for ds at dbPath. An existing file at
// dbPath is replaced.
func NewDuckStoreAtPath(dbPath string, ds models.Dataset) (*DuckStore, error) {
	start := time.Now()
	_ = os.Remove(dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	s := &DuckStore{
		db:         db,
		dbPath:     dbPath,
		ds:         ds,
		colIdx:     make(map[string]int, len(ds.Columns)),
		numeric:    numericColumns(ds),
		countCache: make(map[string]int),
		querySem:   make(chan struct{}, 3),
	}
	for i, c := range ds.Columns {
		s.colIdx[c] = i
	}

	if _, err := db.Exec(createTableSQL(len(ds.Columns))); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}

	slog.Debug("duckstore ready", "path", dbPath, "rows", ds.Len(), "columns", len(ds.Columns), "elapsed", time.Since(start))
	return s, nil
}

func createTableSQL(columns int) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE dataset_rows (row_id INTEGER PRIMARY KEY")
	for i := 0; i < columns; i++ {
		fmt.Fprintf(&b, ", c%d_fold VARCHAR, c%d_text VARCHAR, c%d_num DOUBLE", i, i, i)
	}
	b.WriteString(")")
	return b.String()
}

// numericColumns marks columns whose non-nil values are all numbers.
func numericColumns(ds models.Dataset) []bool {
	out := make([]bool, len(ds.Columns))
	for i, c := range ds.Columns {
		out[i] = true
		for _, row := range ds.Rows {
			v := row[c]
			if v == nil {
				continue
			}
			if _, ok := table.Numeric(v); !ok {
				out[i] = false
				break
			}
		}
	}
	return out
}

// load writes the dataset using the native Appender API.
func (s *DuckStore) load() error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "dataset_rows")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		values := make([]driver.Value, 1+3*len(s.ds.Columns))
		for i, row := range s.ds.Rows {
			values[0] = int32(i)
			for j, c := range s.ds.Columns {
				v := row[c]
				text := table.Display(v)
				values[1+3*j] = strings.ToLower(text)
				if v == nil {
					values[2+3*j] = nil
					values[3+3*j] = nil
					continue
				}
				values[2+3*j] = text
				values[3+3*j] = nil
				if d, ok := table.Numeric(v); ok {
					values[3+3*j] = d.InexactFloat64()
				}
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

func (s *DuckStore) Columns() []string {
	return s.ds.Columns
}

// Count returns the number of rows passing q.Filters.
func (s *DuckStore) Count(ctx context.Context, q table.Query) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	where, args := s.buildWhereClause(q.Filters)
	return s.count(ctx, where, args)
}

// Query returns the filtered, sorted window and the filtered total.
func (s *DuckStore) Query(ctx context.Context, q table.Query) ([]models.Row, int, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer s.release()

	where, args := s.buildWhereClause(q.Filters)
	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.Row{}, 0, nil
	}

	query := "SELECT row_id FROM dataset_rows"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + s.orderBy(q.Sort)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make([]models.Row, 0, max(q.Limit, 0))
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		out = append(out, s.ds.Rows[id])
	}
	return out, total, rows.Err()
}

func (s *DuckStore) count(ctx context.Context, where string, args []any) (int, error) {
	cacheKey := where + fmt.Sprint(args)

	s.countCacheMu.RLock()
	total, found := s.countCache[cacheKey]
	s.countCacheMu.RUnlock()
	if found {
		return total, nil
	}

	query := "SELECT COUNT(*) FROM dataset_rows"
	if where != "" {
		query += " WHERE " + where
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}

	s.countCacheMu.Lock()
	s.countCache[cacheKey] = total
	s.countCacheMu.Unlock()
	return total, nil
}

func (s *DuckStore) acquire(ctx context.Context) error {
	select {
	case s.querySem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DuckStore) release() {
	<-s.querySem
}

func (s *DuckStore) buildWhereClause(filters map[string]string) (string, []any) {
	active := table.ActiveFilters(filters)
	cols := make([]string, 0, len(active))
	for c := range active {
		if _, ok := s.colIdx[c]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return "", nil
	}
	slices.Sort(cols)

	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		clauses[i] = fmt.Sprintf("contains(c%d_fold, ?)", s.colIdx[c])
		args[i] = active[c]
	}
	return strings.Join(clauses, " AND "), args
}

// orderBy sorts absent values first, then falls back to insertion order so
// that ties keep their relative position.
func (s *DuckStore) orderBy(sort table.Sort) string {
	i, ok := s.colIdx[sort.Key]
	if !sort.Active() || !ok {
		return "row_id"
	}
	col := fmt.Sprintf("c%d_text", i)
	if s.numeric[i] {
		col = fmt.Sprintf("c%d_num", i)
	}
	if sort.Direction == table.Desc {
		return col + " DESC NULLS LAST, row_id"
	}
	return col + " ASC NULLS FIRST, row_id"
}

// Close closes the database and removes the temp file.
func (s *DuckStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	if s.dbPath != "" {
		os.Remove(s.dbPath)
		os.Remove(s.dbPath + ".wal")
	}
	return nil
}
