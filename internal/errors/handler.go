package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs for generic HTTP failures
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeTimeout     = "/errors/timeout"
	TypeConflict    = "/errors/conflict"
	TypeMethod      = "/errors/method-not-allowed"
	TypeServiceDown = "/errors/service-unavailable"
)

// Problem type URIs for inventory pipeline failures
const (
	TypeInputNotFound      = "/errors/data/not-found"
	TypeDataInvalid        = "/errors/data/invalid"
	TypeComputationSkipped = "/errors/analysis/skipped"
	TypeStorage            = "/errors/storage"
	TypePipelineRunning    = "/errors/pipeline/already-running"
)

type problemKind struct {
	status int
	uri    string
	title  string
	// detail replaces the error message when set, hiding internals
	detail string
}

const internalDetail = "An unexpected error occurred while processing your request"

var (
	internalProblem = problemKind{http.StatusInternalServerError, TypeInternal, "Internal Server Error", internalDetail}

	appErrorKinds = map[ErrorType]problemKind{
		ErrTypeInputNotFound:      {http.StatusNotFound, TypeInputNotFound, "Input Not Found", ""},
		ErrTypeData:               {http.StatusUnprocessableEntity, TypeDataInvalid, "Invalid Data", ""},
		ErrTypeComputationSkipped: {http.StatusUnprocessableEntity, TypeComputationSkipped, "Computation Skipped", ""},
		ErrTypeValidation:         {http.StatusBadRequest, TypeValidation, "Validation Failed", ""},
		ErrTypeStorage:            {http.StatusInternalServerError, TypeStorage, "Storage Error", "The inventory store could not be read or written"},
	}

	errorCodeTypes = map[string]string{
		"VALIDATION_FAILED":   TypeValidation,
		"INVALID_REQUEST":     TypeValidation,
		"NOT_FOUND":           TypeNotFound,
		"DATASET_NOT_FOUND":   TypeInputNotFound,
		"RUN_IN_PROGRESS":     TypePipelineRunning,
		"RATE_LIMIT_EXCEEDED": TypeRateLimit,
		"SERVICE_UNAVAILABLE": TypeServiceDown,
	}
)

// ErrorHandler renders errors as RFC 7807 problem documents and logs them
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an ErrorHandler. With includeStack, 5xx responses
// carry the goroutine stack.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes its problem document. A nil err writes
// nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	h.write(w, r, problem)
}

// ErrorToProblem maps err onto a problem document. APIErrors keep their
// status and code, AppErrors map by type and anything else is a 500.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		uri, ok := errorCodeTypes[apiErr.ErrorCode]
		if !ok {
			uri = TypeInternal
		}
		problem := NewProblemDetails(apiErr.StatusCode, uri, http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		kind, ok := appErrorKinds[appErr.Type]
		if !ok {
			kind = internalProblem
		}
		return kind.problem(appErr.Message, r).WithExtension("error_type", string(appErr.Type))
	}

	return internalProblem.problem("", r)
}

func (k problemKind) problem(message string, r *http.Request) *ProblemDetails {
	detail := k.detail
	if detail == "" {
		detail = message
	}
	return NewProblemDetails(k.status, k.uri, k.title, detail, r.URL.Path)
}

// HandlePanic answers a recovered panic with a 500 problem document
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := debug.Stack()
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(stack)))

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
	}
	h.write(w, r, problem)
}

// NotFound answers requests no route matched
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed answers requests whose route exists for other methods
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethod, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

// write stamps the request ID as trace_id and renders problem
func (h *ErrorHandler) write(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}
	_ = render.Render(w, r, problem)
}

// RecoveryMiddleware turns handler panics into 500 problem documents.
// http.ErrAbortHandler is re-raised so the server aborts the response.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				handler.HandlePanic(w, r, rec)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
