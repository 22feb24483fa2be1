// Package provider loads water-quality measurements from tabular data
// sources and normalizes them into the domain model.
package provider

import (
	"context"

	"waterscope/pkg/contracts/domain"
)

// DataProvider is the read-only interface every data source implements.
// Implementations must be safe for concurrent use.
type DataProvider interface {
	// ListPoints returns all measurement points available in the source.
	ListPoints(ctx context.Context) ([]domain.MeasurementPoint, error)

	// ListMeasurements returns all measurements recorded at the given
	// point, or an empty slice when the point is unknown.
	ListMeasurements(ctx context.Context, pointID string) ([]domain.Measurement, error)
}
