package process

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/lab-automation/backend/internal/mockgen"
	"github.com/lab-automation/backend/internal/models"
)

// SimulatedProcessor fakes a backend round trip. Every Interval it adds a
// random 5 to 25 percent of progress; once it reaches 100 it generates rows
// locally.
type SimulatedProcessor struct {
	Interval  time.Duration
	Endpoint  string
	Generator *mockgen.Generator
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewSimulatedProcessor creates a processor ticking every interval.
func NewSimulatedProcessor(interval time.Duration, endpoint string) *SimulatedProcessor {
	return &SimulatedProcessor{
		Interval:  interval,
		Endpoint:  endpoint,
		Generator: &mockgen.Generator{},
		Logger:    slog.Default(),
		Now:       time.Now,
	}
}

func (p *SimulatedProcessor) Name() string {
	return "simulated"
}

func (p *SimulatedProcessor) Process(ctx context.Context, req Request, progress ProgressFunc) (models.Dataset, error) {
	meta := models.NewSubmissionMetadata(req.Files, p.Now())
	LogPayload(p.Logger, req, meta, p.Endpoint)

	if err := p.simulateProgress(ctx, progress); err != nil {
		return models.Dataset{}, err
	}

	ds, err := p.Generator.Generate(req.Columns, len(req.Files))
	if err != nil {
		return models.Dataset{}, err
	}
	p.Logger.Info("mock response generated", "component", "process",
		"rows", ds.Len(), "columns", len(ds.Columns))
	return ds, nil
}

// simulateProgress reports floor(progress) each tick. The accumulated value
// can pass 100 internally but only 100 is reported.
func (p *SimulatedProcessor) simulateProgress(ctx context.Context, progress ProgressFunc) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var value float64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		value += rand.Float64()*20 + 5
		if value >= 100 {
			report(progress, 100)
			return nil
		}
		report(progress, int(value))
	}
}

func report(progress ProgressFunc, percent int) {
	if progress != nil {
		progress(percent)
	}
}
