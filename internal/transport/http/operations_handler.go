package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
	"emsinv/internal/operations"
	"emsinv/internal/services"
)

// RunAccepted is the response to an accepted pipeline run
type RunAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Href   string `json:"href"`
}

// Render implements render.Renderer
func (a *RunAccepted) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

// OperationsHandler triggers pipeline runs and reports their progress
type OperationsHandler struct {
	service      OperationServiceInterface
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	validate     *validator.Validate
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service OperationServiceInterface, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *OperationsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	return &OperationsHandler{
		service:      service,
		logger:       infrastructure.WithComponent(logger, "operations_handler"),
		errorHandler: errorHandler,
		validate:     newValidator(),
	}
}

// Routes returns the pipeline routes
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/runs", h.StartRun)
	r.Get("/runs/latest", h.LatestRun)
	r.Get("/runs/{id}", h.GetRun)

	return r
}

// StartRun handles POST /api/v1/pipeline/runs. An empty body runs every
// step; {"steps": [...]} restricts the run.
func (h *OperationsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req operations.OperationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		h.errorHandler.HandleError(w, r, apperrors.ErrInvalidRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, validationProblem(err))
		return
	}

	id, err := h.service.StartRun(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("operation.id", id))
	h.logger.InfoContext(r.Context(), "pipeline run accepted",
		slog.String("operation_id", id),
		slog.Any("steps", req.Steps))

	href := "/api/v1/pipeline/runs/" + id
	w.Header().Set("Location", href)
	render.Render(w, r, &RunAccepted{
		ID:     id,
		Status: string(operations.OperationStatusPending),
		Href:   href,
	})
}

// LatestRun handles GET /api/v1/pipeline/runs/latest
func (h *OperationsHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.LatestRun()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// GetRun handles GET /api/v1/pipeline/runs/{id}
func (h *OperationsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

func (h *OperationsHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		h.errorHandler.HandleError(w, r, apperrors.ErrRunInProgress)
	case errors.Is(err, services.ErrRunNotFound):
		h.errorHandler.HandleError(w, r, apperrors.NotFoundError("pipeline run"))
	case errors.Is(err, services.ErrServiceClosed):
		h.errorHandler.HandleError(w, r, apperrors.ErrServiceUnavailable)
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
