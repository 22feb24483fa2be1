package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "waterscope/internal/errors"
	"waterscope/pkg/contracts/domain"
)

// DatasetHandler handles dataset upload, browsing and plot requests.
type DatasetHandler struct {
	datasets     DatasetServiceInterface
	plots        PlotServiceInterface
	maxUploadMem int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(datasets DatasetServiceInterface, plots PlotServiceInterface, maxUploadMem int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	return &DatasetHandler{
		datasets:     datasets,
		plots:        plots,
		maxUploadMem: maxUploadMem,
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the dataset routes.
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateDataset)
	r.Get("/", h.ListDatasets)

	r.Route("/{datasetID}", func(r chi.Router) {
		r.Use(h.DatasetCtx)
		r.Delete("/", h.DeleteDataset)
		r.Get("/points", h.ListPoints)
		r.Get("/points/{pointID}/measurements", h.ListMeasurements)
		r.Get("/points/{pointID}/plots/{kind}", h.RenderPlot)
	})

	return r
}

// DatasetCtx validates the dataset ID parameter.
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "datasetID") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("datasetID", "Dataset ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateDataset accepts a multipart upload with a single "file" part.
func (h *DatasetHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadMem); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.UploadError(fmt.Errorf("invalid multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A spreadsheet file part is required"))
		return
	}
	defer file.Close()

	dataset, err := h.datasets.Create(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	points, err := h.datasets.ListPoints(r.Context(), dataset.ID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"id":            dataset.ID,
		"original_name": dataset.OriginalName,
		"size":          dataset.Size,
		"uploaded_at":   dataset.UploadedAt,
		"point_count":   dataset.PointCount,
		"points":        points,
	})
}

// ListDatasets returns all live datasets.
func (h *DatasetHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"datasets": h.datasets.List(),
	})
}

// DeleteDataset removes a dataset and its stored workbook.
func (h *DatasetHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	if err := h.datasets.Delete(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// ListPoints returns the measurement points of a dataset.
func (h *DatasetHandler) ListPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	points, err := h.datasets.ListPoints(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"dataset_id": id,
		"points":     points,
	})
}

// measurementQuery carries the optional time window filter.
type measurementQuery struct {
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

// ListMeasurements returns the measurement series of one point,
// optionally limited to a date window via from/to query parameters.
func (h *DatasetHandler) ListMeasurements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	pointID := pathParam(r, "pointID")

	query := measurementQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := h.validate.Struct(query); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("from/to", "Dates must use the YYYY-MM-DD format"))
		return
	}

	measurements, err := h.datasets.ListMeasurements(r.Context(), id, pointID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	measurements = filterWindow(measurements, query)

	render.JSON(w, r, map[string]any{
		"dataset_id": id,
		"point_id":   pointID,
		"count":      len(measurements),
		"items":      measurements,
	})
}

// RenderPlot renders a PNG chart for one point.
func (h *DatasetHandler) RenderPlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	pointID := pathParam(r, "pointID")
	kind := chi.URLParam(r, "kind")

	png, err := h.plots.Render(r.Context(), id, pointID, kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// pathParam returns a URL parameter with percent-escapes decoded. Point
// IDs may contain spaces or Polish characters.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func filterWindow(measurements []domain.Measurement, query measurementQuery) []domain.Measurement {
	if query.From == "" && query.To == "" {
		return measurements
	}

	var from, to time.Time
	if query.From != "" {
		from, _ = time.Parse("2006-01-02", query.From)
	}
	if query.To != "" {
		to, _ = time.Parse("2006-01-02", query.To)
		// Inclusive upper bound.
		to = to.Add(24 * time.Hour)
	}

	out := make([]domain.Measurement, 0, len(measurements))
	for _, m := range measurements {
		if !from.IsZero() && m.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !m.Timestamp.Before(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}
