package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
	"emsinv/internal/services"
)

type itemCtxKey struct{}

// trendQuery holds the validated query parameters of the trend endpoint
type trendQuery struct {
	Window int `json:"window" validate:"gte=0,lte=120"`
}

// DataHandler serves the preprocessed inventory dataset
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	validate     *validator.Validate
}

// NewDataHandler creates a new data handler
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       infrastructure.WithComponent(logger, "data_handler"),
		errorHandler: errorHandler,
		validate:     newValidator(),
	}
}

// Routes returns the data routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/items", h.GetItems)
	r.Route("/items/{item}", func(r chi.Router) {
		r.Use(h.ItemCtx)
		r.Get("/trend", h.GetItemTrend)
	})
	r.Get("/reports/analysis", h.GetAnalysisReport)

	return r
}

// ItemCtx validates the item URL parameter and stores it in the context
func (h *DataHandler) ItemCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		item := chi.URLParam(r, "item")
		if item == "" || len(item) > 128 {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("item", "item name must be 1 to 128 characters"))
			return
		}
		ctx := context.WithValue(r.Context(), itemCtxKey{}, item)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetItems handles GET /api/v1/items
func (h *DataHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetItems(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, list)
}

// GetItemTrend handles GET /api/v1/items/{item}/trend?window=N. A window
// of zero or no window uses the configured smoothing window.
func (h *DataHandler) GetItemTrend(w http.ResponseWriter, r *http.Request) {
	item, _ := r.Context().Value(itemCtxKey{}).(string)

	var q trendQuery
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("window", "must be an integer"))
			return
		}
		q.Window = n
	}
	if err := h.validate.Struct(q); err != nil {
		h.errorHandler.HandleError(w, r, validationProblem(err))
		return
	}

	trend, err := h.service.GetItemTrend(r.Context(), item, q.Window)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, trend)
}

// GetAnalysisReport handles GET /api/v1/reports/analysis
func (h *DataHandler) GetAnalysisReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetAnalysisReport(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (h *DataHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.IsInputNotFound(err):
		h.errorHandler.HandleError(w, r, apperrors.ErrDatasetNotFound)
	case errors.Is(err, services.ErrItemNotFound):
		item, _ := r.Context().Value(itemCtxKey{}).(string)
		h.errorHandler.HandleError(w, r, apperrors.NotFoundError("item "+item))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
