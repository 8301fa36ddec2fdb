// Package mockgen synthesizes tabular data from column names.
package mockgen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// MinRowsPerFile and MaxRowsPerFile bound the per-file row draw (inclusive).
	MinRowsPerFile = 15
	MaxRowsPerFile = 25
)

// Names is the roster used for "name" columns.
var Names = []string{
	"John Smith", "Sarah Johnson", "Michael Brown", "Emma Davis", "James Wilson",
	"Lisa Anderson", "David Miller", "Jennifer Garcia", "Robert Martinez", "Mary Rodriguez",
	"Christopher Lee", "Patricia Taylor", "Matthew Thomas", "Linda Jackson", "Daniel White",
}

var (
	batchPrefixes = []string{"BTH", "LOT", "BAT", "GRP"}
	emailUsers    = []string{"user", "test", "demo", "sample"}
	emailDomains  = []string{"example.com", "test.org", "sample.net", "demo.co"}
)

// EarliestDate is the lower bound for "date" columns.
var EarliestDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generator produces datasets. The zero value is ready to use.
type Generator struct {
	// Now returns the upper bound for "date" columns. Defaults to time.Now.
	Now func() time.Time
	// Rand, when set, is used instead of a fresh source per call.
	Rand *rand.Rand
}

// Generate builds rowsPerFile*fileCount rows for the given columns, with
// rowsPerFile drawn once from [MinRowsPerFile, MaxRowsPerFile].
func Generate(columns []string, fileCount int) (models.Dataset, error) {
	var g Generator
	return g.Generate(columns, fileCount)
}

// Generate builds a dataset. See the package-level Generate.
func (g *Generator) Generate(columns []string, fileCount int) (models.Dataset, error) {
	if fileCount < 1 {
		return models.Dataset{}, fmt.Errorf("file count must be positive, got %d", fileCount)
	}

	r := g.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}

	cols := append([]string(nil), columns...)
	roles := make([]Role, len(cols))
	for i, c := range cols {
		roles[i] = RoleOf(c)
	}

	rowsPerFile := MinRowsPerFile + r.IntN(MaxRowsPerFile-MinRowsPerFile+1)
	total := rowsPerFile * fileCount

	rows := make([]models.Row, 0, total)
	for i := 0; i < total; i++ {
		row := make(models.Row, len(cols))
		for j, c := range cols {
			row[c] = value(r, roles[j], c, now)
		}
		rows = append(rows, row)
	}

	return models.Dataset{Columns: cols, Rows: rows}, nil
}

func value(r *rand.Rand, role Role, column string, now time.Time) any {
	switch role {
	case RoleName:
		return pick(r, Names)
	case RoleDate:
		return randomDate(r, now)
	case RoleBatchID:
		return fmt.Sprintf("%s-%04d", pick(r, batchPrefixes), 1+r.IntN(9999))
	case RoleID:
		return 1 + r.IntN(10000)
	case RoleEmail:
		return fmt.Sprintf("%s%d@%s", pick(r, emailUsers), 1+r.IntN(999), pick(r, emailDomains))
	case RoleAge:
		return 18 + r.IntN(60)
	case RoleScore:
		return cents(r, 100)
	case RoleValue:
		return cents(r, 1000)
	case RoleAmount:
		return cents(r, 5000)
	default:
		return fmt.Sprintf("Sample %s %d", column, 1+r.IntN(100))
	}
}

func pick(r *rand.Rand, from []string) string {
	return from[r.IntN(len(from))]
}

// cents returns a two-place decimal in [0, upper).
func cents(r *rand.Rand, upper int) decimal.Decimal {
	return decimal.New(r.Int64N(int64(upper)*100), -2)
}

func randomDate(r *rand.Rand, now time.Time) string {
	span := now.Sub(EarliestDate)
	if span <= 0 {
		return EarliestDate.Format(time.DateOnly)
	}
	return EarliestDate.Add(time.Duration(r.Int64N(int64(span)))).UTC().Format(time.DateOnly)
}
