package process

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testRequest() Request {
	blobs := map[string]string{"f1": "a,b\n1,2\n", "f2": "c,d\n"}
	return Request{
		Files: []models.FileInfo{
			{ID: "f1", Name: "one.csv", Size: 8, MIMEType: "text/csv"},
			{ID: "f2", Name: "two.csv", Size: 4, MIMEType: "text/csv"},
		},
		Columns: []string{"name", "age"},
		Open: func(id string) (io.ReadCloser, error) {
			data, ok := blobs[id]
			if !ok {
				return nil, errors.New("missing")
			}
			return io.NopCloser(strings.NewReader(data)), nil
		},
	}
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) record(v int) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func (p *progressLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func TestSimulatedProcessor(t *testing.T) {
	p := NewSimulatedProcessor(time.Millisecond, "/api/process")
	p.Logger = quietLogger

	var progress progressLog
	ds, err := p.Process(context.Background(), testRequest(), progress.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, ds.Columns)
	assert.Zero(t, ds.Len()%2)

	values := progress.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	for i, v := range values {
		assert.LessOrEqual(t, v, 100)
		assert.GreaterOrEqual(t, v, 5)
		if i > 0 {
			assert.Greater(t, v, values[i-1])
		}
	}
	// 5% minimum per tick bounds the number of reports.
	assert.LessOrEqual(t, len(values), 20)
}

func TestSimulatedProcessor_Cancel(t *testing.T) {
	p := NewSimulatedProcessor(time.Hour, "/api/process")
	p.Logger = quietLogger

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Process(ctx, testRequest(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPayload_RoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	body, contentType, err := BuildPayload(testRequest(), now)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/process", body)
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	sub, err := ParseSubmission(req.MultipartForm)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, sub.Columns)
	require.Len(t, sub.Files, 2)
	assert.Equal(t, "one.csv", sub.Files[0].Filename)
	assert.Equal(t, "text/csv", sub.Files[0].Header.Get("Content-Type"))

	f, err := sub.Files[1].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "c,d\n", string(data))

	assert.Equal(t, models.SubmissionMetadata{
		Timestamp: now,
		FileCount: 2,
		TotalSize: 12,
		Filenames: []string{"one.csv", "two.csv"},
		Filesizes: []int64{8, 4},
	}, sub.Metadata)
}

func TestBuildPayload_OpenFailure(t *testing.T) {
	req := testRequest()
	req.Files = append(req.Files, models.FileInfo{ID: "gone", Name: "gone.csv"})

	_, _, err := BuildPayload(req, time.Now())
	assert.Error(t, err)
}

func TestParseSubmission_Invalid(t *testing.T) {
	_, err := ParseSubmission(nil)
	assert.Error(t, err)

	body, contentType, err := BuildPayload(Request{Columns: []string{"a"}}, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	_, err = ParseSubmission(req.MultipartForm)
	require.Error(t, err)
	assert.Equal(t, "Invalid request. Please check your files and column names.", err.Error())
}

func newRemote(url string) *RemoteProcessor {
	p := NewRemoteProcessor(url, "/api/process", time.Second, 2, time.Millisecond)
	p.Logger = quietLogger
	return p
}

func TestRemoteProcessor_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/process", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		sub, err := ParseSubmission(r.MultipartForm)
		assert.NoError(t, err)
		assert.Len(t, sub.Files, 2)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"columns": []string{"name", "age"},
			"rows": []map[string]any{
				{"name": "John Smith", "age": 42},
				{"name": "Emma Davis", "age": nil},
			},
		})
	}))
	defer srv.Close()

	var progress progressLog
	ds, err := newRemote(srv.URL).Process(context.Background(), testRequest(), progress.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, json.Number("42"), ds.Rows[0]["age"])
	assert.Nil(t, ds.Rows[1]["age"])
	assert.Equal(t, []int{10, 90, 100}, progress.snapshot())
}

func TestRemoteProcessor_FallbackColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows":[{"name":"x","age":1}]}`))
	}))
	defer srv.Close()

	ds, err := newRemote(srv.URL).Process(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, ds.Columns)
}

func TestRemoteProcessor_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"columns":["name"],"rows":[]}`))
	}))
	defer srv.Close()

	_, err := newRemote(srv.URL).Process(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteProcessor_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newRemote(srv.URL).Process(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, "Server error. Please try again later.", err.Error())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteProcessor_NoRetryOnClientErrors(t *testing.T) {
	tests := map[int]string{
		400: "Invalid request. Please check your files and column names.",
		401: "Authentication required.",
		403: "Access denied.",
		413: "File size too large. Please reduce file size and try again.",
		429: "Too many requests. Please wait and try again.",
		418: "Request failed with status 418",
	}
	for status, want := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			_, err := newRemote(srv.URL).Process(context.Background(), testRequest(), nil)
			require.Error(t, err)
			assert.Equal(t, want, err.Error())
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRemoteProcessor_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newRemote(url).Process(context.Background(), testRequest(), nil)
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, "Network error. Please check your connection and try again.", err.Error())
}
