package http

import (
	"context"
	"io"

	"waterscope/internal/services"
	"waterscope/pkg/contracts/domain"
)

// DatasetServiceInterface defines the dataset operations the handlers
// depend on.
type DatasetServiceInterface interface {
	Create(ctx context.Context, filename string, r io.Reader, size int64) (*services.Dataset, error)
	Get(id string) (*services.Dataset, error)
	List() []*services.Dataset
	Delete(ctx context.Context, id string) error
	ListPoints(ctx context.Context, id string) ([]domain.MeasurementPoint, error)
	ListMeasurements(ctx context.Context, id, pointID string) ([]domain.Measurement, error)
}

// PlotServiceInterface defines the plot rendering operation.
type PlotServiceInterface interface {
	Render(ctx context.Context, datasetID, pointID, kind string) ([]byte, error)
}
