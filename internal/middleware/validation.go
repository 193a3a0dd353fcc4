package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "pitpipe/internal/errors"
)

// DefaultMaxBodySize bounds JSON request bodies; a full mask for the
// default cell limit fits comfortably.
const DefaultMaxBodySize = 32 << 20

// ValidationMiddleware rejects oversized or malformed JSON bodies before
// they reach a handler
type ValidationMiddleware struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxBodySize int64) *ValidationMiddleware {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &ValidationMiddleware{
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  maxBodySize,
	}
}

// ValidateRequest checks the size and JSON syntax of request bodies
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"REQUEST_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]any{
					"max_size": m.maxBodySize,
					"size":     r.ContentLength,
				},
			))
			return
		}

		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize+1))
		if err != nil {
			m.logger.ErrorContext(r.Context(), "failed to read request body",
				slog.String("error", err.Error()),
			)
			m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		if int64(len(body)) > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusRequestEntityTooLarge,
				"REQUEST_TOO_LARGE",
				"Request body exceeds maximum allowed size",
			))
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			m.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_REQUEST",
				"Request body contains invalid JSON",
			))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// ContentTypeValidator ensures requests with a body declare one of contentTypes
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"MISSING_PARAMETER",
					"Content-Type header is required",
				))
				return
			}

			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]any{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// QueryParamValidator parses query parameters, answering with a problem
// response on failure
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateList splits a comma separated parameter, dropping blanks.
// A missing parameter yields nil.
func (v *QueryParamValidator) ValidateList(r *http.Request, param string) []string {
	value := r.URL.Query().Get(param)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ValidateInt64List parses a required comma separated list of
// non-negative integers, such as asset sids
func (v *QueryParamValidator) ValidateInt64List(w http.ResponseWriter, r *http.Request, param string) ([]int64, bool) {
	items := v.ValidateList(r, param)
	if len(items) == 0 {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s is required", param)))
		return nil, false
	}

	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseInt(item, 10, 64)
		if err != nil || n < 0 {
			v.logger.DebugContext(r.Context(), "rejected query parameter",
				slog.String("param", param),
				slog.String("value", item),
			)
			v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
				fmt.Sprintf("%s must be non-negative integers, got %q", param, item)))
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// ValidateRequired returns a parameter that must be present
func (v *QueryParamValidator) ValidateRequired(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s is required", param)))
		return "", false
	}
	return value, true
}
