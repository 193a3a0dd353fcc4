package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/render"

	"pitpipe/internal/adjusted"
	"pitpipe/internal/events"
	"pitpipe/internal/factors"
	"pitpipe/internal/infrastructure"
	"pitpipe/internal/loaders"
	"pitpipe/internal/services"
	"pitpipe/internal/sources"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
)

// Domain-specific error types
const (
	TypeUnknownDataset    = "/errors/dataset/unknown"
	TypeUnknownFactor     = "/errors/factor/unknown"
	TypeUnknownColumn     = "/errors/column/unknown"
	TypeColumnSetMismatch = "/errors/column/set-mismatch"
	TypeInvalidRange      = "/errors/range/invalid"
	TypeInvalidMask       = "/errors/mask/invalid"
	TypeDataCorrupted     = "/errors/data/corrupted"
)

// domainError maps a sentinel to the problem it is reported as
type domainError struct {
	target error
	status int
	typ    string
	title  string
}

// domainErrors is matched in order; the first sentinel found in the chain wins
var domainErrors = []domainError{
	{services.ErrUnknownDataset, http.StatusNotFound, TypeUnknownDataset, "Unknown Dataset"},
	{loaders.ErrUnknownDataset, http.StatusNotFound, TypeUnknownDataset, "Unknown Dataset"},
	{services.ErrUnknownFactor, http.StatusNotFound, TypeUnknownFactor, "Unknown Factor"},
	{loaders.ErrUnknownColumn, http.StatusNotFound, TypeUnknownColumn, "Unknown Column"},
	{loaders.ErrColumnSetMismatch, http.StatusBadRequest, TypeColumnSetMismatch, "Column Set Mismatch"},
	{services.ErrInvalidRange, http.StatusBadRequest, TypeInvalidRange, "Invalid Date Range"},
	{services.ErrRequestTooLarge, http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Request Too Large"},
	{adjusted.ErrShapeMismatch, http.StatusBadRequest, TypeInvalidMask, "Invalid Mask"},
	{adjusted.ErrInvalidMask, http.StatusBadRequest, TypeInvalidMask, "Invalid Mask"},

	// Bad rows in a source: the request was fine, the data behind it is not
	{events.ErrMissingTimestamp, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{events.ErrMissingField, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{events.ErrInvalidTable, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{loaders.ErrInvalidRow, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{sources.ErrMissingColumn, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{sources.ErrMalformedValue, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{adjusted.ErrDateOutOfRange, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
	{factors.ErrNotDatetime, http.StatusUnprocessableEntity, TypeDataCorrupted, "Invalid Source Data"},
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	ctx := r.Context()
	traceID := infrastructure.GetTraceID(ctx)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(ctx, level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	if errors.Is(err, services.ErrInvalidRequest) {
		problem := NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Validation Failed",
			"Request validation failed",
			r.URL.Path,
		)
		if fields := FieldErrors(err); len(fields) > 0 {
			problem.WithExtension("errors", fields)
		}
		return problem
	}

	for _, d := range domainErrors {
		if errors.Is(err, d.target) {
			return NewProblemDetails(d.status, d.typ, d.title, err.Error(), r.URL.Path)
		}
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
	case "REQUEST_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON helper for consistent JSON responses
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
