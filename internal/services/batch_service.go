package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"waterscope/internal/config"
	apierrors "waterscope/internal/errors"
	"waterscope/internal/metrics"
	"waterscope/internal/provider"
	"waterscope/internal/websocket"
)

// Job states.
const (
	JobStatePending   = "pending"
	JobStateRunning   = "running"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

// ProgressBroadcaster pushes job progress to connected clients.
type ProgressBroadcaster interface {
	Broadcast(messageType string, data any)
}

// BatchInput is one workbook queued for batch processing. Path points at
// a file already stored by the transport layer; the service removes it
// when the job finishes.
type BatchInput struct {
	Name string
	Path string
}

// FileResult records the outcome for one workbook in a batch job.
type FileResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Points int    `json:"points,omitempty"`
	Plots  int    `json:"plots,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Job is a batch plot-generation job.
type Job struct {
	ID          string       `json:"id"`
	State       string       `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	TotalFiles  int          `json:"total_files"`
	Processed   int          `json:"processed"`
	Files       []FileResult `json:"files"`
	Error       string       `json:"error,omitempty"`

	archivePath string
}

// archiveEntry is a rendered chart waiting to be written into the job
// archive.
type archiveEntry struct {
	name string
	data []byte
}

// BatchService processes multiple workbooks concurrently and bundles the
// rendered charts into a downloadable ZIP archive.
type BatchService struct {
	paths   config.Paths
	upload  config.UploadConfig
	timeout time.Duration
	plots   *PlotService
	hub     ProgressBroadcaster
	logger  *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	janitorOnce sync.Once
	janitorQuit chan struct{}
}

// NewBatchService creates a batch service. hub may be nil when progress
// broadcasting is not wanted.
func NewBatchService(paths config.Paths, upload config.UploadConfig, timeout time.Duration, plots *PlotService, hub ProgressBroadcaster, logger *slog.Logger) *BatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{
		paths:       paths,
		upload:      upload,
		timeout:     timeout,
		plots:       plots,
		hub:         hub,
		logger:      logger.With(slog.String("component", "batch_service")),
		jobs:        make(map[string]*Job),
		janitorQuit: make(chan struct{}),
	}
}

// StartJanitor launches the background loop that removes finished jobs
// and their archives once the retention window has passed. It is a
// no-op when retention is zero.
func (s *BatchService) StartJanitor(retention time.Duration) {
	if retention <= 0 {
		return
	}
	s.janitorOnce.Do(func() {
		go s.janitor(retention)
	})
}

func (s *BatchService) janitor(retention time.Duration) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.janitorQuit:
			return
		case <-ticker.C:
			s.evictExpired(retention)
		}
	}
}

func (s *BatchService) evictExpired(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	var expired []*Job
	for id, job := range s.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			expired = append(expired, job)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, job := range expired {
		if err := os.Remove(job.archivePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove expired archive",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
		}
		s.logger.Info("batch job expired", slog.String("job_id", job.ID))
	}
}

// Close stops the janitor.
func (s *BatchService) Close() {
	close(s.janitorQuit)
}

// Submit validates the inputs, registers a job and starts processing in
// the background.
func (s *BatchService) Submit(ctx context.Context, inputs []BatchInput) (*Job, error) {
	if len(inputs) == 0 {
		return nil, apierrors.UploadError(ErrEmptyUpload)
	}
	if len(inputs) > s.upload.MaxBatchFiles {
		return nil, apierrors.UploadError(fmt.Errorf("%w: %d files (limit %d)", ErrTooManyFiles, len(inputs), s.upload.MaxBatchFiles))
	}

	job := &Job{
		ID:         uuid.New().String(),
		State:      JobStatePending,
		CreatedAt:  time.Now(),
		TotalFiles: len(inputs),
		Files:      make([]FileResult, len(inputs)),
	}
	for i, in := range inputs {
		job.Files[i] = FileResult{Name: in.Name, Status: "pending"}
	}
	job.archivePath = s.paths.ArchivePath(job.ID + ".zip")

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "batch job submitted",
		slog.String("job_id", job.ID),
		slog.Int("files", len(inputs)))

	go s.process(job.ID, inputs)

	return s.snapshot(job.ID), nil
}

// GetJob returns a snapshot of the job with the given ID.
func (s *BatchService) GetJob(id string) (*Job, error) {
	snap := s.snapshot(id)
	if snap == nil {
		return nil, apierrors.ErrJobNotFound
	}
	return snap, nil
}

// ArchivePath returns the path of the finished job's ZIP archive.
func (s *BatchService) ArchivePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return "", apierrors.ErrJobNotFound
	}
	if job.State != JobStateCompleted {
		return "", apierrors.NewWithDetails(http.StatusConflict, "JOB_NOT_READY", "Batch job has not completed", job.State)
	}
	return job.archivePath, nil
}

func (s *BatchService) process(jobID string, inputs []BatchInput) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		for _, in := range inputs {
			os.Remove(in.Path)
		}
	}()

	s.setState(jobID, JobStateRunning, "")
	s.broadcastProgress(jobID)

	var (
		entriesMu sync.Mutex
		entries   []archiveEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.upload.BatchWorkers)

	for i, in := range inputs {
		g.Go(func() error {
			result := s.processFile(gctx, in)

			entriesMu.Lock()
			entries = append(entries, result.entries...)
			entriesMu.Unlock()

			s.recordFileResult(jobID, i, result.FileResult)
			s.broadcastProgress(jobID)
			return nil
		})
	}

	// Workers report failures per file, so the group error is only the
	// context deadline.
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		s.finish(jobID, JobStateFailed, "batch processing timed out")
		return
	}

	if len(entries) == 0 {
		s.finish(jobID, JobStateFailed, "no charts could be rendered from the uploaded files")
		return
	}

	if err := s.writeArchive(jobID, entries); err != nil {
		s.logger.Error("failed to write archive",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		s.finish(jobID, JobStateFailed, "failed to write result archive")
		return
	}

	s.finish(jobID, JobStateCompleted, "")
}

type fileOutcome struct {
	FileResult
	entries []archiveEntry
}

func (s *BatchService) processFile(ctx context.Context, in BatchInput) fileOutcome {
	outcome := fileOutcome{FileResult: FileResult{Name: in.Name}}

	fail := func(err error) fileOutcome {
		metrics.ParseErrorsTotal.Inc()
		outcome.Status = "failed"
		outcome.Error = err.Error()
		return outcome
	}

	prov := provider.NewExcelProvider(in.Path, s.logger)
	points, err := prov.ListPoints(ctx)
	if err != nil {
		return fail(err)
	}

	dir := safeName(strings.TrimSuffix(in.Name, filepath.Ext(in.Name)))

	for _, point := range points {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}

		measurements, err := prov.ListMeasurements(ctx, point.ID)
		if err != nil || len(measurements) == 0 {
			continue
		}

		for kind, suffix := range map[string]string{
			PlotKindWaterQuality: "physicochemical",
			PlotKindChemical:     "chemical",
		} {
			png, err := s.plots.RenderMeasurements(kind, measurements, point.Name)
			if err != nil {
				continue
			}
			outcome.entries = append(outcome.entries, archiveEntry{
				name: fmt.Sprintf("%s/%s_%s.png", dir, safeName(point.Name), suffix),
				data: png,
			})
			outcome.Plots++
		}
	}

	outcome.Status = "completed"
	outcome.Points = len(points)
	return outcome
}

func (s *BatchService) writeArchive(jobID string, entries []archiveEntry) error {
	f, err := os.Create(s.paths.ArchivePath(jobID + ".zip"))
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := w.Write(entry.data); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func (s *BatchService) snapshot(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}

	snap := *job
	snap.Files = append([]FileResult(nil), job.Files...)
	return &snap
}

func (s *BatchService) setState(id, state, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.State = state
		job.Error = errMsg
	}
}

func (s *BatchService) recordFileResult(id string, index int, result FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && index < len(job.Files) {
		job.Files[index] = result
		job.Processed++
	}
}

func (s *BatchService) finish(id, state, errMsg string) {
	now := time.Now()

	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.State = state
		job.Error = errMsg
		job.CompletedAt = &now
	}
	s.mu.Unlock()

	metrics.BatchJobsTotal.WithLabelValues(state).Inc()

	messageType := websocket.TypeJobComplete
	if state == JobStateFailed {
		messageType = websocket.TypeJobFailed
	}
	s.broadcast(messageType, id)

	s.logger.Info("batch job finished",
		slog.String("job_id", id),
		slog.String("state", state))
}

func (s *BatchService) broadcastProgress(id string) {
	s.broadcast(websocket.TypeJobProgress, id)
}

func (s *BatchService) broadcast(messageType, id string) {
	if s.hub == nil {
		return
	}
	if snap := s.snapshot(id); snap != nil {
		s.hub.Broadcast(messageType, snap)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]+`)

// safeName makes a string usable as an archive path component.
func safeName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "unnamed"
	}
	return name
}

// StoreTemp validates an incoming batch file and writes it next to the
// uploads so the job can read it after the request body is gone. Entries
// go through the same name and size checks as single uploads.
func (s *BatchService) StoreTemp(name string, r io.Reader) (BatchInput, error) {
	if err := validateUploadName(name); err != nil {
		return BatchInput{}, err
	}

	path := s.paths.UploadPath("batch-" + uuid.New().String() + ".xlsx")

	f, err := os.Create(path)
	if err != nil {
		return BatchInput{}, err
	}
	defer f.Close()

	// Read one byte past the limit so oversize entries are detected
	// instead of silently truncated.
	written, err := io.Copy(f, io.LimitReader(r, s.upload.MaxFileSize+1))
	if err != nil {
		os.Remove(path)
		return BatchInput{}, err
	}
	if err := validateUploadSize(written, s.upload.MaxFileSize); err != nil {
		os.Remove(path)
		return BatchInput{}, err
	}
	return BatchInput{Name: filepath.Base(name), Path: path}, nil
}
