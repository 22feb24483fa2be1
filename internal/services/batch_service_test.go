package services

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *recordingBroadcaster) Broadcast(messageType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, messageType)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func newTestBatchService(t *testing.T, hub ProgressBroadcaster) *BatchService {
	t.Helper()

	datasets := newTestDatasetService(t)
	plots := NewPlotService(datasets, nil)
	return NewBatchService(datasets.paths, datasets.upload, time.Minute, plots, hub, slog.Default())
}

func storeWorkbook(t *testing.T, svc *BatchService, name string) BatchInput {
	t.Helper()

	data := buildWorkbook(t)
	input, err := svc.StoreTemp(name, bytes.NewReader(data))
	require.NoError(t, err)
	return input
}

func waitForJob(t *testing.T, svc *BatchService, id string) *Job {
	t.Helper()

	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.GetJob(id)
		require.NoError(t, err)
		return job.State == JobStateCompleted || job.State == JobStateFailed
	}, 30*time.Second, 50*time.Millisecond)
	return job
}

func TestBatchServiceSubmit(t *testing.T) {
	hub := &recordingBroadcaster{}
	svc := newTestBatchService(t, hub)
	ctx := context.Background()

	inputs := []BatchInput{
		storeWorkbook(t, svc, "wisla.xlsx"),
		storeWorkbook(t, svc, "rudawa.xlsx"),
	}

	job, err := svc.Submit(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, job.TotalFiles)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStateCompleted, done.State)
	assert.Equal(t, 2, done.Processed)
	require.NotNil(t, done.CompletedAt)
	for _, f := range done.Files {
		assert.Equal(t, "completed", f.Status)
		assert.Equal(t, 1, f.Points)
		assert.Equal(t, 2, f.Plots)
	}

	// Both kinds of chart for the single point, per file.
	archivePath, err := svc.ArchivePath(job.ID)
	require.NoError(t, err)

	zr, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Len(t, names, 4)
	assert.Contains(t, names, "wisla/Most_Poniatowskiego_physicochemical.png")
	assert.Contains(t, names, "wisla/Most_Poniatowskiego_chemical.png")
	assert.Contains(t, names, "rudawa/Most_Poniatowskiego_physicochemical.png")

	// Temp inputs are cleaned up after the job.
	for _, in := range inputs {
		assert.NoFileExists(t, in.Path)
	}

	types := hub.types()
	assert.Contains(t, types, "job:progress")
	assert.Equal(t, "job:complete", types[len(types)-1])
}

func TestBatchServiceStoreTempRejections(t *testing.T) {
	svc := newTestBatchService(t, nil)

	tests := []struct {
		name     string
		filename string
		content  []byte
		cause    error
	}{
		{"wrong extension", "report.pdf", []byte("pdf"), ErrInvalidFileType},
		{"legacy xls", "pomiary.xls", []byte("ole"), ErrInvalidFileType},
		{"lock file", "~$pomiary.xlsx", []byte("lock"), ErrTemporaryFile},
		{"empty", "pomiary.xlsx", nil, ErrEmptyUpload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StoreTemp(tt.filename, bytes.NewReader(tt.content))
			assert.ErrorIs(t, err, tt.cause)
		})
	}

	// Rejected entries must not leave temp files behind.
	entries, err := os.ReadDir(svc.paths.UploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchServiceStoreTempOversize(t *testing.T) {
	svc := newTestBatchService(t, nil)
	svc.upload.MaxFileSize = 16

	_, err := svc.StoreTemp("pomiary.xlsx", bytes.NewReader(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(svc.paths.UploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchServiceSubmitLimits(t *testing.T) {
	svc := newTestBatchService(t, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, nil)
	assert.Error(t, err)

	inputs := make([]BatchInput, 21)
	for i := range inputs {
		inputs[i] = BatchInput{Name: "f.xlsx", Path: "irrelevant"}
	}
	_, err = svc.Submit(ctx, inputs)
	assert.Error(t, err)
}

func TestBatchServiceUnparseableFile(t *testing.T) {
	svc := newTestBatchService(t, nil)
	ctx := context.Background()

	broken := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a workbook"), 0o644))

	job, err := svc.Submit(ctx, []BatchInput{
		storeWorkbook(t, svc, "good.xlsx"),
		{Name: "broken.xlsx", Path: broken},
	})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStateCompleted, done.State)

	byName := map[string]FileResult{}
	for _, f := range done.Files {
		byName[f.Name] = f
	}
	assert.Equal(t, "completed", byName["good.xlsx"].Status)
	assert.Equal(t, "failed", byName["broken.xlsx"].Status)
	assert.NotEmpty(t, byName["broken.xlsx"].Error)
}

func TestBatchServiceAllFilesFail(t *testing.T) {
	svc := newTestBatchService(t, nil)
	ctx := context.Background()

	broken := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a workbook"), 0o644))

	job, err := svc.Submit(ctx, []BatchInput{{Name: "broken.xlsx", Path: broken}})
	require.NoError(t, err)

	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStateFailed, done.State)
	assert.NotEmpty(t, done.Error)

	_, err = svc.ArchivePath(job.ID)
	assert.Error(t, err)
}

func TestBatchServiceUnknownJob(t *testing.T) {
	svc := newTestBatchService(t, nil)

	_, err := svc.GetJob("no-such-job")
	assert.Error(t, err)
	_, err = svc.ArchivePath("no-such-job")
	assert.Error(t, err)
}

func TestBatchServiceEvictExpired(t *testing.T) {
	svc := newTestBatchService(t, nil)
	ctx := context.Background()

	job, err := svc.Submit(ctx, []BatchInput{storeWorkbook(t, svc, "wisla.xlsx")})
	require.NoError(t, err)
	done := waitForJob(t, svc, job.ID)
	require.Equal(t, JobStateCompleted, done.State)

	archivePath, err := svc.ArchivePath(job.ID)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	svc.mu.Lock()
	svc.jobs[job.ID].CompletedAt = &past
	svc.mu.Unlock()

	svc.evictExpired(time.Hour)

	_, err = svc.GetJob(job.ID)
	assert.Error(t, err)
	assert.NoFileExists(t, archivePath)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Most_Poniatowskiego", safeName("Most Poniatowskiego"))
	assert.Equal(t, "Rudawa_uj_cie", safeName("Rudawa ujście"))
	assert.Equal(t, "unnamed", safeName("  "))
	assert.False(t, strings.Contains(safeName("a/b\\c"), "/"))
}
