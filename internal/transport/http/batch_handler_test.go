package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "waterscope/internal/errors"
	"waterscope/internal/services"
)

// MockBatchService is a mock implementation of BatchServiceInterface.
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) StoreTemp(name string, r io.Reader) (services.BatchInput, error) {
	args := m.Called(name)
	return args.Get(0).(services.BatchInput), args.Error(1)
}

func (m *MockBatchService) Submit(ctx context.Context, inputs []services.BatchInput) (*services.Job, error) {
	args := m.Called(len(inputs))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Job), args.Error(1)
}

func (m *MockBatchService) GetJob(id string) (*services.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Job), args.Error(1)
}

func (m *MockBatchService) ArchivePath(id string) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func newBatchTestServer(batch *MockBatchService) *httptest.Server {
	logger := slog.Default()
	handler := NewBatchHandler(batch, 32<<20, logger, apierrors.NewErrorHandler(logger, false))
	return httptest.NewServer(handler.Routes())
}

func batchBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range filenames {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("workbook bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitBatch(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	batch.On("StoreTemp", "a.xlsx").Return(services.BatchInput{Name: "a.xlsx", Path: "/tmp/a"}, nil)
	batch.On("StoreTemp", "b.xlsx").Return(services.BatchInput{Name: "b.xlsx", Path: "/tmp/b"}, nil)
	batch.On("Submit", 2).Return(&services.Job{ID: "j1", State: services.JobStatePending, TotalFiles: 2}, nil)

	body, contentType := batchBody(t, "a.xlsx", "b.xlsx")
	resp, err := http.Post(server.URL+"/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job services.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, 2, job.TotalFiles)
	batch.AssertExpectations(t)
}

func TestSubmitBatchNoFiles(t *testing.T) {
	server := newBatchTestServer(&MockBatchService{})
	defer server.Close()

	body, contentType := batchBody(t)
	resp, err := http.Post(server.URL+"/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBatchRejected(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	batch.On("StoreTemp", "a.xlsx").Return(services.BatchInput{Name: "a.xlsx", Path: filepath.Join(t.TempDir(), "a")}, nil)
	batch.On("Submit", 1).Return(nil, apierrors.UploadError(services.ErrTooManyFiles))

	body, contentType := batchBody(t, "a.xlsx")
	resp, err := http.Post(server.URL+"/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitBatchEntryRejected(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	// Already-stored entries are cleaned up when a later one is rejected.
	stored := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(stored, []byte("workbook bytes"), 0o644))

	batch.On("StoreTemp", "a.xlsx").Return(services.BatchInput{Name: "a.xlsx", Path: stored}, nil)
	batch.On("StoreTemp", "~$b.xlsx").Return(services.BatchInput{}, services.ErrTemporaryFile)

	body, contentType := batchBody(t, "a.xlsx", "~$b.xlsx")
	resp, err := http.Post(server.URL+"/", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var data map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, "UPLOAD_REJECTED", data["error_code"])
	assert.NoFileExists(t, stored)
	batch.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestGetJob(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	batch.On("GetJob", "j1").Return(&services.Job{ID: "j1", State: services.JobStateRunning, Processed: 1, TotalFiles: 3}, nil)

	resp, err := http.Get(server.URL + "/j1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var job services.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, services.JobStateRunning, job.State)
	assert.Equal(t, 1, job.Processed)
}

func TestGetJobNotFound(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	batch.On("GetJob", "missing").Return(nil, apierrors.ErrJobNotFound)

	resp, err := http.Get(server.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestDownloadArchive(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	// A real zip so ServeFile has something to stream.
	path := filepath.Join(t.TempDir(), "j1.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("charts/p1_chemical.png")
	require.NoError(t, err)
	_, err = w.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	batch.On("ArchivePath", "j1").Return(path, nil)

	resp, err := http.Get(server.URL + "/j1/archive")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "charts-j1.zip")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
}

func TestDownloadArchiveNotReady(t *testing.T) {
	batch := &MockBatchService{}
	server := newBatchTestServer(batch)
	defer server.Close()

	batch.On("ArchivePath", "j1").
		Return("", apierrors.NewWithDetails(http.StatusConflict, "JOB_NOT_READY", "Batch job has not completed", services.JobStateRunning))

	resp, err := http.Get(server.URL + "/j1/archive")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
