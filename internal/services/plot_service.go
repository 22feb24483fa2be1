package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apierrors "waterscope/internal/errors"
	"waterscope/internal/metrics"
	"waterscope/internal/visualization"
	"waterscope/pkg/contracts/domain"
)

// Plot kinds accepted by the API.
const (
	PlotKindWaterQuality = "water-quality"
	PlotKindChemical     = "chemical"
)

// PlotService renders measurement series into PNG charts.
type PlotService struct {
	datasets *DatasetService
	logger   *slog.Logger
}

// NewPlotService creates a plot service backed by the dataset store.
func NewPlotService(datasets *DatasetService, logger *slog.Logger) *PlotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlotService{
		datasets: datasets,
		logger:   logger.With(slog.String("component", "plot_service")),
	}
}

// ValidKind reports whether kind names a supported plot.
func ValidKind(kind string) bool {
	return kind == PlotKindWaterQuality || kind == PlotKindChemical
}

// Render produces a PNG chart of the given kind for one point of a
// dataset.
func (s *PlotService) Render(ctx context.Context, datasetID, pointID, kind string) ([]byte, error) {
	if !ValidKind(kind) {
		return nil, apierrors.ErrValidation("kind", fmt.Sprintf("unknown plot kind %q", kind))
	}

	measurements, err := s.datasets.ListMeasurements(ctx, datasetID, pointID)
	if err != nil {
		return nil, err
	}

	point, err := s.findPoint(ctx, datasetID, pointID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	png, err := s.renderKind(kind, measurements, point)
	if err != nil {
		if errors.Is(err, visualization.ErrNoMeasurements) || errors.Is(err, visualization.ErrNoPlottableData) {
			return nil, apierrors.ErrNoMeasurements
		}
		return nil, apierrors.PlotError(err)
	}

	metrics.PlotsRenderedTotal.WithLabelValues(kind).Inc()
	metrics.PlotRenderDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	s.logger.InfoContext(ctx, "plot rendered",
		slog.String("dataset_id", datasetID),
		slog.String("point_id", pointID),
		slog.String("kind", kind),
		slog.Int("bytes", len(png)),
		slog.Duration("duration", time.Since(start)))

	return png, nil
}

// RenderMeasurements renders directly from an in-memory series. Batch
// processing uses it to avoid going through the dataset store.
func (s *PlotService) RenderMeasurements(kind string, measurements []domain.Measurement, title string) ([]byte, error) {
	switch kind {
	case PlotKindWaterQuality:
		return visualization.RenderWaterQuality(measurements, title)
	case PlotKindChemical:
		return visualization.RenderChemical(measurements, title)
	default:
		return nil, fmt.Errorf("unknown plot kind %q", kind)
	}
}

func (s *PlotService) renderKind(kind string, measurements []domain.Measurement, point domain.MeasurementPoint) ([]byte, error) {
	title := point.Name
	switch kind {
	case PlotKindWaterQuality:
		return visualization.RenderWaterQuality(measurements, title)
	default:
		return visualization.RenderChemical(measurements, title)
	}
}

func (s *PlotService) findPoint(ctx context.Context, datasetID, pointID string) (domain.MeasurementPoint, error) {
	points, err := s.datasets.ListPoints(ctx, datasetID)
	if err != nil {
		return domain.MeasurementPoint{}, err
	}
	for _, p := range points {
		if p.ID == pointID {
			return p, nil
		}
	}
	return domain.MeasurementPoint{}, apierrors.ErrPointNotFound
}
