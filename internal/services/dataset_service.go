// Package services contains the application services sitting between the
// HTTP transport and the spreadsheet provider: dataset lifecycle, plot
// rendering, batch processing and health reporting.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"waterscope/internal/config"
	apierrors "waterscope/internal/errors"
	"waterscope/internal/metrics"
	"waterscope/internal/provider"
	"waterscope/pkg/contracts/domain"
)

// Dataset is an uploaded workbook held by the service until it expires
// or is deleted.
type Dataset struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
	PointCount   int       `json:"point_count"`

	path     string
	provider provider.DataProvider
}

// DatasetService stores uploaded workbooks on disk and serves their
// parsed contents. Datasets expire after the configured TTL.
type DatasetService struct {
	paths  config.Paths
	upload config.UploadConfig
	logger *slog.Logger

	mu       sync.RWMutex
	datasets map[string]*Dataset

	janitorOnce sync.Once
	janitorQuit chan struct{}
}

// NewDatasetService creates a dataset service rooted at the configured
// uploads directory.
func NewDatasetService(paths config.Paths, upload config.UploadConfig, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		paths:       paths,
		upload:      upload,
		logger:      logger.With(slog.String("component", "dataset_service")),
		datasets:    make(map[string]*Dataset),
		janitorQuit: make(chan struct{}),
	}
}

// validateUploadName rejects Excel lock files and anything that is not
// an .xlsx workbook. Legacy OLE .xls is not accepted: excelize cannot
// read it, so letting it through would only defer the failure to parse
// time.
func validateUploadName(filename string) error {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, "~$") {
		return ErrTemporaryFile
	}
	if strings.ToLower(filepath.Ext(base)) != ".xlsx" {
		return ErrInvalidFileType
	}
	return nil
}

// validateUploadSize checks a file size against the configured limit.
func validateUploadSize(size, limit int64) error {
	if size <= 0 {
		return ErrEmptyUpload
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, limit)
	}
	return nil
}

// ValidateUpload checks the filename and declared size before any bytes
// are stored. Batch entries go through the same checks in
// BatchService.StoreTemp.
func (s *DatasetService) ValidateUpload(filename string, size int64) error {
	if err := validateUploadName(filename); err != nil {
		return err
	}
	return validateUploadSize(size, s.upload.MaxFileSize)
}

// Create stores an uploaded workbook, parses its point index to validate
// it, and registers the dataset.
func (s *DatasetService) Create(ctx context.Context, filename string, r io.Reader, size int64) (*Dataset, error) {
	if err := s.ValidateUpload(filename, size); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, apierrors.UploadError(err)
	}

	id := uuid.New().String()
	path := s.paths.UploadPath(id + ".xlsx")

	written, err := s.writeFile(path, r)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if written > s.upload.MaxFileSize {
		os.Remove(path)
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, apierrors.UploadError(fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, written, s.upload.MaxFileSize))
	}

	prov := provider.NewExcelProvider(path, s.logger)
	points, err := prov.ListPoints(ctx)
	if err != nil {
		os.Remove(path)
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		metrics.ParseErrorsTotal.Inc()
		return nil, apierrors.ParseError(err)
	}

	ds := &Dataset{
		ID:           id,
		OriginalName: filepath.Base(filename),
		Size:         written,
		UploadedAt:   time.Now(),
		PointCount:   len(points),
		path:         path,
		provider:     prov,
	}

	s.mu.Lock()
	s.datasets[id] = ds
	count := len(s.datasets)
	s.mu.Unlock()

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	metrics.ActiveDatasets.Set(float64(count))

	s.logger.InfoContext(ctx, "dataset created",
		slog.String("dataset_id", id),
		slog.String("original_name", ds.OriginalName),
		slog.Int64("size", written),
		slog.Int("points", len(points)))

	return ds, nil
}

func (s *DatasetService) writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Read one byte past the limit so oversize bodies are detected even
	// when the declared size was absent or wrong.
	written, err := io.Copy(f, io.LimitReader(r, s.upload.MaxFileSize+1))
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return written, nil
}

// Get returns the dataset with the given ID.
func (s *DatasetService) Get(id string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, apierrors.ErrDatasetNotFound
	}
	return ds, nil
}

// List returns all live datasets, newest first.
func (s *DatasetService) List() []*Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// Delete removes a dataset and its stored workbook.
func (s *DatasetService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	ds, ok := s.datasets[id]
	if ok {
		delete(s.datasets, id)
	}
	count := len(s.datasets)
	s.mu.Unlock()

	if !ok {
		return apierrors.ErrDatasetNotFound
	}

	metrics.ActiveDatasets.Set(float64(count))

	if err := os.Remove(ds.path); err != nil && !os.IsNotExist(err) {
		s.logger.WarnContext(ctx, "failed to remove dataset file",
			slog.String("dataset_id", id),
			slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "dataset deleted", slog.String("dataset_id", id))
	return nil
}

// ListPoints returns the measurement points of a dataset.
func (s *DatasetService) ListPoints(ctx context.Context, id string) ([]domain.MeasurementPoint, error) {
	ds, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	points, err := ds.provider.ListPoints(ctx)
	if err != nil {
		return nil, apierrors.ParseError(err)
	}
	return points, nil
}

// ListMeasurements returns the measurement series of one point in a
// dataset, ordered by timestamp.
func (s *DatasetService) ListMeasurements(ctx context.Context, id, pointID string) ([]domain.Measurement, error) {
	ds, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	points, err := ds.provider.ListPoints(ctx)
	if err != nil {
		return nil, apierrors.ParseError(err)
	}

	known := false
	for _, p := range points {
		if p.ID == pointID {
			known = true
			break
		}
	}
	if !known {
		return nil, apierrors.ErrPointNotFound
	}

	measurements, err := ds.provider.ListMeasurements(ctx, pointID)
	if err != nil {
		return nil, apierrors.ParseError(err)
	}
	return measurements, nil
}

// Provider exposes the dataset's data provider for services that render
// from it directly.
func (s *DatasetService) Provider(id string) (provider.DataProvider, error) {
	ds, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return ds.provider, nil
}

// StartJanitor launches the background loop that evicts expired
// datasets. It is a no-op when the TTL is zero.
func (s *DatasetService) StartJanitor() {
	if s.upload.DatasetTTL <= 0 {
		return
	}
	s.janitorOnce.Do(func() {
		go s.janitor()
	})
}

func (s *DatasetService) janitor() {
	interval := s.upload.DatasetTTL / 4
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
			s.evictExpired()
		}
	}
}

func (s *DatasetService) evictExpired() {
	cutoff := time.Now().Add(-s.upload.DatasetTTL)

	s.mu.Lock()
	var expired []*Dataset
	for id, ds := range s.datasets {
		if ds.UploadedAt.Before(cutoff) {
			expired = append(expired, ds)
			delete(s.datasets, id)
		}
	}
	count := len(s.datasets)
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	metrics.ActiveDatasets.Set(float64(count))

	for _, ds := range expired {
		if err := os.Remove(ds.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove expired dataset file",
				slog.String("dataset_id", ds.ID),
				slog.String("error", err.Error()))
		}
		s.logger.Info("dataset expired",
			slog.String("dataset_id", ds.ID),
			slog.Time("uploaded_at", ds.UploadedAt))
	}
}

// Close stops the janitor and removes all stored workbooks.
func (s *DatasetService) Close() {
	close(s.janitorQuit)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ds := range s.datasets {
		os.Remove(ds.path)
		delete(s.datasets, id)
	}
	metrics.ActiveDatasets.Set(0)
}
