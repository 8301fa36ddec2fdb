package api

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/process"
	"github.com/lab-automation/backend/internal/session"
	"github.com/lab-automation/backend/internal/table"
	"github.com/lab-automation/backend/internal/testutil"
	"github.com/lab-automation/backend/internal/upload"
	"github.com/lab-automation/backend/internal/workspace"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type testEnv struct {
	e        *echo.Echo
	ws       *workspace.Workspace
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	uploads := upload.NewManager(testutil.NewMockStorage(), upload.DefaultLimits(), nil)
	proc := process.NewSimulatedProcessor(time.Millisecond, "/api/process")
	sessions := session.NewManager(proc, session.Options{})
	t.Cleanup(sessions.CloseAll)

	opts := workspace.DefaultOptions()
	ws := workspace.New(uploads, sessions, opts)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	handlers := NewHandlers(&Dependencies{
		Workspace:     ws,
		Sessions:      sessions,
		UploadJobs:    uploads,
		Table:         opts.Table,
		MaxRows:       1000,
		ProcessorName: proc.Name(),
		Version:       "test",
	})
	RegisterRoutes(e, handlers, "/api/process")
	return &testEnv{e: e, ws: ws, sessions: sessions}
}

func (env *testEnv) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(method, target, body string) *httptest.ResponseRecorder {
	return env.do(method, target, strings.NewReader(body), echo.MIMEApplicationJSON)
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr.Message
}

func multipartFiles(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		h.Set("Content-Type", "text/csv")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		part.Write([]byte("id,value\n1,2\n"))
		require.NoError(t, w.WriteField("lastModified", "1700000000000"))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (env *testEnv) upload(t *testing.T, names ...string) upload.Job {
	t.Helper()
	body, ct := multipartFiles(t, names...)
	rec := env.do(http.MethodPost, "/api/files", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job upload.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Eventually(t, func() bool {
		rec := env.do(http.MethodGet, "/api/uploads/"+job.ID, nil, "")
		var status upload.Job
		json.Unmarshal(rec.Body.Bytes(), &status)
		return status.Status == upload.StatusComplete
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func (env *testEnv) submit(t *testing.T) models.ProcessSession {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/submit", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var sess models.ProcessSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.Eventually(t, func() bool {
		submitting, _ := env.ws.Submitting()
		return !submitting
	}, 5*time.Second, 5*time.Millisecond)
	return sess
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) table.Page {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page table.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.Contains(t, rec.Body.String(), `"processor":"simulated"`)
}

func TestColumnHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(http.MethodPost, "/api/columns", `{"name":"Name"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.doJSON(http.MethodPost, "/api/columns", `{"name":"Name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Column "Name" already exists!`, errorMessage(t, rec))

	rec = env.do(http.MethodGet, "/api/state", nil, "")
	var snap workspace.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, []string{"Name"}, snap.Columns)
	require.NotNil(t, snap.Notification)
	assert.Equal(t, workspace.NotifyError, snap.Notification.Kind)

	rec = env.do(http.MethodDelete, "/api/columns/Other", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/columns/Name", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.ws.Columns())
}

func TestThemeAndFileTypeHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/file-types", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"csv"`)

	assert.Equal(t, http.StatusNoContent, env.doJSON(http.MethodPut, "/api/theme", `{"theme":"dark-mode"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(http.MethodPut, "/api/theme", `{"theme":"neon"}`).Code)
	assert.Equal(t, http.StatusNoContent, env.doJSON(http.MethodPut, "/api/file-type", `{"category":"txt"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(http.MethodPut, "/api/file-type", `{"category":""}`).Code)

	snap := env.ws.Snapshot()
	assert.Equal(t, workspace.ThemeDarkMode, snap.Theme)
	assert.Equal(t, "txt", snap.FileType)
}

func TestUploadHandlers(t *testing.T) {
	env := newTestEnv(t)

	names := make([]string, 11)
	for i := range names {
		names[i] = fmt.Sprintf("f%d.csv", i)
	}
	body, ct := multipartFiles(t, names...)
	rec := env.do(http.MethodPost, "/api/files", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Too many files. Maximum allowed: 10.", errorMessage(t, rec))

	env.upload(t, "a.csv", "b.csv")

	rec = env.do(http.MethodGet, "/api/files", nil, "")
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 2)
	assert.Equal(t, "a.csv", files[0].Name)
	assert.Equal(t, int64(1700000000000), files[0].LastModified.UnixMilli())

	rec = env.do(http.MethodDelete, "/api/files/"+files[0].ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodDelete, "/api/files/"+files[0].ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/files", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/uploads/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/submit", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload at least one file and add at least one column name!", errorMessage(t, rec))

	rec = env.do(http.MethodPost, "/api/submit/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/table", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitAndTableFlow(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.doJSON(http.MethodPost, "/api/columns", `{"name":"name"}`).Code)
	require.Equal(t, http.StatusCreated, env.doJSON(http.MethodPost, "/api/columns", `{"name":"age"}`).Code)
	env.upload(t, "a.csv", "b.csv")

	sess := env.submit(t)

	rec := env.do(http.MethodGet, "/api/sessions/"+sess.ID, nil, "")
	var status models.ProcessSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.SessionStatusComplete, status.Status)
	assert.Equal(t, 100, status.Progress)
	total := status.RowCount
	assert.True(t, total >= 30 && total <= 50, "two files yield 30..50 rows, got %d", total)

	page := decodePage(t, env.do(http.MethodGet, "/api/table", nil, ""))
	assert.Equal(t, []string{"name", "age"}, page.Columns)
	assert.Equal(t, total, page.TotalRows)
	assert.Equal(t, 1, page.Page)

	page = decodePage(t, env.doJSON(http.MethodPut, "/api/table/page", `{"page":99}`))
	assert.Equal(t, page.TotalPages, page.Page)

	page = decodePage(t, env.doJSON(http.MethodPut, "/api/table/filters/age", `{"value":"5"}`))
	assert.Equal(t, 1, page.Page)
	for _, row := range page.Rows {
		assert.Contains(t, row[1], "5")
	}

	page = decodePage(t, env.do(http.MethodPost, "/api/table/sort/age", nil, ""))
	assert.Equal(t, table.Sort{Key: "age", Direction: table.Asc}, page.Sort)
	page = decodePage(t, env.do(http.MethodPost, "/api/table/sort/age", nil, ""))
	assert.Equal(t, table.Desc, page.Sort.Direction)

	rec = env.do(http.MethodPost, "/api/table/sort/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	page = decodePage(t, env.do(http.MethodDelete, "/api/table/filters/age", nil, ""))
	assert.Equal(t, total, page.TotalRows)

	rec = env.do(http.MethodGet, "/api/table/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))
	var packed table.Page
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, total, packed.TotalRows)

	rec = env.do(http.MethodGet, "/api/table/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".csv")
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, total+1)
	assert.Equal(t, []string{"name", "age"}, records[0])

	rec = env.do(http.MethodGet, "/api/table/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/api/table", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, "/api/table", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionRowsHandler(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ws.AddColumn("id"))
	require.NoError(t, env.ws.AddColumn("score"))
	env.upload(t, "a.csv")
	sess := env.submit(t)

	page := decodePage(t, env.do(http.MethodGet, "/api/sessions/"+sess.ID+"/rows?pageSize=5&page=2&sort=id&order=desc", nil, ""))
	assert.Equal(t, 5, page.PageSize)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Rows, 5)
	assert.Equal(t, table.Desc, page.Sort.Direction)

	page = decodePage(t, env.do(http.MethodGet, "/api/sessions/"+sess.ID+"/rows?filter.id=zzz", nil, ""))
	assert.True(t, page.Empty)
	assert.Equal(t, map[string]string{"id": "zzz"}, page.Filters)

	rec := env.do(http.MethodGet, "/api/sessions/"+sess.ID+"/rows?pageSize=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/sessions/"+sess.ID+"/rows/msgpack?pageSize=5000", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var packed table.Page
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, 1000, packed.PageSize)

	rec = env.do(http.MethodGet, "/api/sessions/unknown/rows", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/api/sessions/"+sess.ID+"/keepalive", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/sessions/unknown/keepalive", nil, "").Code)
}

func TestSessionProgressStream(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ws.AddColumn("id"))
	env.upload(t, "a.csv")
	sess := env.submit(t)

	rec := env.do(http.MethodGet, "/api/sessions/"+sess.ID+"/progress", nil, "")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []models.ProcessSession
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var s models.ProcessSession
		require.NoError(t, json.Unmarshal([]byte(line), &s))
		events = append(events, s)
	}
	require.Len(t, events, 1)
	assert.Equal(t, models.SessionStatusComplete, events[0].Status)

	rec = env.do(http.MethodGet, "/api/sessions/unknown/progress", nil, "")
	assert.Contains(t, rec.Body.String(), "session not found")
}

func TestProcessHandler(t *testing.T) {
	env := newTestEnv(t)

	store := testutil.NewMockStorage()
	a := store.AddFile("file-a", "a.csv", []byte("1,2"))
	b := store.AddFile("file-b", "b.csv", []byte("3,4"))
	req := process.Request{
		Files:   []models.FileInfo{*a, *b},
		Columns: []string{"name", "email"},
		Open:    store.Open,
	}
	body, ct, err := process.BuildPayload(req, time.Now())
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/api/process", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Columns  []string         `json:"columns"`
		Rows     []map[string]any `json:"rows"`
		RowCount int              `json:"rowCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"name", "email"}, resp.Columns)
	assert.Len(t, resp.Rows, resp.RowCount)
	assert.True(t, resp.RowCount >= 30 && resp.RowCount <= 50)

	empty, emptyCT := multipartFiles(t)
	rec = env.do(http.MethodPost, "/api/process", empty, emptyCT)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request. Please check your files and column names.", errorMessage(t, rec))
}

func TestRemoteProcessorAgainstMockBackend(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	store := testutil.NewMockStorage()
	f := store.AddFile("file-data", "data.csv", []byte("x"))
	remote := process.NewRemoteProcessor(srv.URL, "/api/process", 5*time.Second, 0, time.Millisecond)

	var progress []int
	ds, err := remote.Process(t.Context(), process.Request{
		Files:   []models.FileInfo{*f},
		Columns: []string{"id", "age"},
		Open:    store.Open,
	}, func(p int) { progress = append(progress, p) })

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "age"}, ds.Columns)
	assert.True(t, ds.Len() >= 15 && ds.Len() <= 25)
	assert.Equal(t, []int{10, 90, 100}, progress)
}
