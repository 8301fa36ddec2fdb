package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lab-automation/backend/internal/models"
)

// StatusError is a non-2xx answer from the processing backend.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	switch e.Status {
	case http.StatusBadRequest:
		return "Invalid request. Please check your files and column names."
	case http.StatusUnauthorized:
		return "Authentication required."
	case http.StatusForbidden:
		return "Access denied."
	case http.StatusRequestEntityTooLarge:
		return "File size too large. Please reduce file size and try again."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait and try again."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	default:
		return fmt.Sprintf("Request failed with status %d", e.Status)
	}
}

// Retryable reports whether the request may be retried.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500
}

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error. Please check your connection and try again."
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteProcessor posts the submission payload to a processing backend.
type RemoteProcessor struct {
	BaseURL    string
	Endpoint   string
	Client     *http.Client
	Timeout    time.Duration
	MaxRetries int
	// RetryDelay is doubled after each failed attempt.
	RetryDelay time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewRemoteProcessor creates a processor for baseURL+endpoint.
func NewRemoteProcessor(baseURL, endpoint string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *RemoteProcessor {
	return &RemoteProcessor{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Endpoint:   endpoint,
		Client:     &http.Client{},
		Timeout:    timeout,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		Logger:     slog.Default(),
		Now:        time.Now,
	}
}

func (p *RemoteProcessor) Name() string {
	return "remote"
}

// URL returns the endpoint the payload is posted to.
func (p *RemoteProcessor) URL() string {
	return p.BaseURL + p.Endpoint
}

type processResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (p *RemoteProcessor) Process(ctx context.Context, req Request, progress ProgressFunc) (models.Dataset, error) {
	now := p.Now()
	body, contentType, err := BuildPayload(req, now)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("building payload: %w", err)
	}
	LogPayload(p.Logger, req, models.NewSubmissionMetadata(req.Files, now), p.URL())
	report(progress, 10)

	payload := body.Bytes()
	var resp processResponse
	for attempt := 0; ; attempt++ {
		err = p.post(ctx, payload, contentType, &resp)
		if err == nil {
			break
		}
		var se *StatusError
		if !errors.As(err, &se) || !se.Retryable() || attempt >= p.MaxRetries {
			return models.Dataset{}, err
		}

		wait := p.RetryDelay << attempt
		p.Logger.Warn("processing request failed, retrying", "component", "process",
			"status", se.Status, "attempt", attempt+1, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return models.Dataset{}, ctx.Err()
		}
	}
	report(progress, 90)

	ds := toDataset(resp, req.Columns)
	report(progress, 100)
	return ds, nil
}

func (p *RemoteProcessor) post(ctx context.Context, payload []byte, contentType string, out *processResponse) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// toDataset keeps the response column order, falling back to the requested
// columns when the backend omits it.
func toDataset(resp processResponse, requested []string) models.Dataset {
	columns := resp.Columns
	if len(columns) == 0 {
		columns = append([]string(nil), requested...)
	}
	rows := make([]models.Row, len(resp.Rows))
	for i, r := range resp.Rows {
		rows[i] = models.Row(r)
	}
	return models.Dataset{Columns: columns, Rows: rows}
}
