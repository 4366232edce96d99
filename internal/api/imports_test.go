package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/list-importer/internal/config"
	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/progress"
	"github.com/ignite/list-importer/internal/session"
)

type testEnv struct {
	router    http.Handler
	sessions  *session.Store
	bulkCalls *int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	var calls int32
	bulk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(bulk.Close)

	cfg := &config.Config{
		Upload: config.UploadConfig{
			Endpoint:            bulk.URL,
			BatchSize:           50,
			BatchTimeoutSeconds: 5,
			MaxRetries:          1,
		},
		Import: config.ImportConfig{RequiredFields: []string{"email"}},
	}
	sessions := session.NewStore(rdb)
	svc := NewService(cfg, sessions, nil)
	return &testEnv{router: svc.Router(), sessions: sessions, bulkCalls: &calls}
}

func multipartBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

const sampleCSV = "Email,First Name,Last Name,Phone,Zip\n" +
	"JANE.DOE@Example.COM,jane,doe,(555) 123-4567,12345\n" +
	"jane.doe@example.com,Janet,Doe,555-123-4567,12345\n" +
	"bob@example.com,Bob,Smith,555-98,02134\n" +
	"alice@example.com,Alice,Jones,555-987-6543,54321\n"

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t)

	// 1. Upload and parse
	body, ct := multipartBody(t, "contacts.csv", sampleCSV)
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var created createImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, "csv", created.Format)
	assert.Equal(t, 4, created.RowCount)
	assert.True(t, created.HeaderDetection.HasHeaders)
	assert.Equal(t, etl.FieldEmail, created.SuggestedMapping["Email"])

	// 2. Process with the suggested mapping
	mapping, _ := json.Marshal(map[string]any{"mapping": created.SuggestedMapping})
	rr = env.do(t, http.MethodPost, "/api/imports/"+created.SessionID+"/process",
		bytes.NewReader(mapping), "application/json")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result etl.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 4, result.Stats.TotalInput)
	assert.Equal(t, 1, result.Stats.Invalid)    // bob's 6-digit phone
	assert.Equal(t, 1, result.Stats.Duplicates) // second jane row
	assert.Equal(t, 2, result.Stats.Unique)
	assert.Equal(t, result.Stats.Valid, result.Stats.Unique+result.Stats.Duplicates)

	// 3. Kick off the upload
	rr = env.do(t, http.MethodPost, "/api/imports/"+created.SessionID+"/upload", nil, "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	require.Eventually(t, func() bool {
		sess, err := env.sessions.Get(context.Background(), created.SessionID)
		return err == nil && sess.Status == session.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(env.bulkCalls)) // 2 records, one batch

	// 4. Progress reflects the finished run
	rr = env.do(t, http.MethodGet, "/api/imports/"+created.SessionID+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.True(t, snap.Terminal)
	assert.Equal(t, 2, snap.RecordsSucceeded)
	assert.Equal(t, snap.RecordsProcessed, snap.RecordsSucceeded+snap.RecordsFailed)

	// 5. Start over
	rr = env.do(t, http.MethodDelete, "/api/imports/"+created.SessionID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/imports/"+created.SessionID+"/progress", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateImportUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "contacts.docx", "whatever")
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported_format", resp.Kind)
}

func TestCreateImportEmptyFile(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "contacts.csv", "")
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "empty_file")
}

func TestCreateImportMissingFileField(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "not a file"))
	require.NoError(t, mw.Close())

	rr := env.do(t, http.MethodPost, "/api/imports", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessRejectsBadMapping(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "contacts.csv", sampleCSV)
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, rr.Code)
	var created createImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	// No email bound
	payload := `{"mapping":{"First Name":"first_name"}}`
	rr = env.do(t, http.MethodPost, "/api/imports/"+created.SessionID+"/process",
		bytes.NewReader([]byte(payload)), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email")
}

func TestUploadRequiresProcessedSession(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "contacts.csv", sampleCSV)
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, rr.Code)
	var created createImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = env.do(t, http.MethodPost, "/api/imports/"+created.SessionID+"/upload", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "parsed")
}

func TestProgressBeforeProcessing(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "contacts.csv", sampleCSV)
	rr := env.do(t, http.MethodPost, "/api/imports", body, ct)
	require.Equal(t, http.StatusOK, rr.Code)
	var created createImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	// No stored snapshot yet: a fresh all-pending view comes back
	rr = env.do(t, http.MethodGet, "/api/imports/"+created.SessionID+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.False(t, snap.Terminal)
	for _, st := range snap.Stages {
		assert.Equal(t, progress.StatusPending, st.Status)
	}
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/imports/nope/process",
		bytes.NewReader([]byte(`{"mapping":{"Email":"email"}}`)), "application/json")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFieldsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/fields", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Fields []etl.FieldDefinition `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Fields)

	names := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		names[i] = string(f.Name)
	}
	assert.Contains(t, names, "email")
	assert.Contains(t, names, "zip")
}
