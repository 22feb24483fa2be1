package http

import (
	"context"
	"io"

	"waterscope/internal/services"
)

// BatchServiceInterface defines the batch job operations the handlers
// depend on.
type BatchServiceInterface interface {
	StoreTemp(name string, r io.Reader) (services.BatchInput, error)
	Submit(ctx context.Context, inputs []services.BatchInput) (*services.Job, error)
	GetJob(id string) (*services.Job, error)
	ArchivePath(id string) (string, error)
}
