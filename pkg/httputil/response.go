package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
	"github.com/pbengoa/Tourline-front-sub001/pkg/logger"
	"github.com/pbengoa/Tourline-front-sub001/pkg/validator"
)

// maxBodyBytes caps JSON request bodies accepted by DecodeJSON.
const maxBodyBytes = 1 << 20

// Response is the agent's JSON envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error member of Response. Title and Action carry the
// user-facing description when the caller has one.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Title     string            `json:"title,omitempty"`
	Action    string            `json:"action,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a {data} envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// StatusFor picks the agent response status for err. Upstream failures keep
// their status when it is a client error; network failures become 503 and
// server failures 502.
func StatusFor(err error) int {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case apperrors.KindNetwork:
		return http.StatusServiceUnavailable
	case apperrors.KindServer:
		return http.StatusBadGateway
	}
	if appErr.Status >= 400 && appErr.Status < 500 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// WriteError writes err as an {error} envelope. detail, when non-nil, fills
// the user-facing fields.
func WriteError(w http.ResponseWriter, r *http.Request, err error, detail *ErrorResponse, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status := StatusFor(err)
	body := ErrorResponse{
		Code:      "INTERNAL_ERROR",
		Message:   "an internal error occurred",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var valErr *validator.ValidationError
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &valErr):
		body.Code = "VALIDATION_ERROR"
		body.Message = "request validation failed"
		body.Fields = valErr.Fields()
	case errors.As(err, &appErr):
		body.Code = appErr.Code
		body.Message = appErr.Message
		body.Kind = string(appErr.Kind)
	}
	if detail != nil {
		body.Title = detail.Title
		body.Action = detail.Action
		if detail.Message != "" {
			body.Message = detail.Message
		}
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// DecodeJSON decodes a JSON request body into dst and validates it.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("malformed request body: %v", err))
	}
	return validator.Validate(dst)
}
