package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "waterscope/internal/errors"
	"waterscope/internal/services"
)

// BatchHandler handles multi-file batch processing requests.
type BatchHandler struct {
	batch        BatchServiceInterface
	maxUploadMem int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(batch BatchServiceInterface, maxUploadMem int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *BatchHandler {
	return &BatchHandler{
		batch:        batch,
		maxUploadMem: maxUploadMem,
		logger:       logger.With(slog.String("component", "batch_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the batch routes.
func (h *BatchHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.SubmitBatch)
	r.Route("/{jobID}", func(r chi.Router) {
		r.Get("/", h.GetJob)
		r.Get("/archive", h.DownloadArchive)
	})

	return r
}

// SubmitBatch accepts a multipart upload with repeated "files" parts and
// starts an asynchronous batch job.
func (h *BatchHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMem); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.UploadError(fmt.Errorf("invalid multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "At least one spreadsheet file is required"))
		return
	}

	inputs := make([]services.BatchInput, 0, len(headers))
	cleanup := func() {
		for _, in := range inputs {
			os.Remove(in.Path)
		}
	}

	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			cleanup()
			h.errorHandler.HandleError(w, r, apierrors.UploadError(err))
			return
		}

		input, err := h.batch.StoreTemp(header.Filename, file)
		file.Close()
		if err != nil {
			cleanup()
			h.errorHandler.HandleError(w, r, apierrors.UploadError(err))
			return
		}
		inputs = append(inputs, input)
	}

	job, err := h.batch.Submit(r.Context(), inputs)
	if err != nil {
		cleanup()
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// GetJob returns the state of a batch job.
func (h *BatchHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.batch.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, job)
}

// DownloadArchive streams the finished job's ZIP archive.
func (h *BatchHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	path, err := h.batch.ArchivePath(jobID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="charts-%s.zip"`, jobID))
	http.ServeFile(w, r, path)
}
