package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"tutor/tutor/controllers"
	"tutor/tutor/services/tutor"
	"tutor/tutor/sources/storage"
	"tutor/tutor/utils/logging"
	"tutor/tutor/utils/types"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeContentBlocked  = "CONTENT_BLOCKED"
	CodeResponseBlocked = "RESPONSE_BLOCKED"
	CodeProvider        = "PROVIDER_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorBody is the JSON envelope of every failed request.
type ErrorBody struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Details     []string `json:"details,omitempty"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	SafetyScore *float64 `json:"safetyScore,omitempty"`
}

type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// handleJSON wraps a handler returning (data, status, error) in the
// response envelope.
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, status, dataBody{Success: true, Data: res})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.ErrorLogger.Error("response encode failed", zap.Error(err))
	}
}

// errorResponse maps an error to its status code and envelope.
func errorResponse(err error) (int, ErrorBody) {
	var (
		verr *types.ValidationError
		serr *tutor.SafetyError
		perr *tutor.ProviderError
		body = ErrorBody{Success: false}
	)
	switch {
	case errors.As(err, &verr):
		body.Error, body.Message, body.Details = CodeValidation, "invalid request", verr.Messages
		return http.StatusBadRequest, body
	case errors.Is(err, tutor.ErrUnknownProvider):
		body.Error, body.Message = CodeValidation, err.Error()
		return http.StatusBadRequest, body
	case errors.As(err, &serr):
		score := serr.Validation.SafetyScore
		body.Issues, body.Suggestions, body.SafetyScore = serr.Validation.Issues, serr.Validation.Suggestions, &score
		if serr.Stage == tutor.StageResponse {
			body.Error, body.Message = CodeResponseBlocked, "the generated response did not pass the safety check"
			return http.StatusInternalServerError, body
		}
		body.Error, body.Message = CodeContentBlocked, "message blocked by safety check"
		return http.StatusBadRequest, body
	case errors.As(err, &perr):
		body.Error, body.Message = CodeProvider, "the AI provider is unavailable, please try again"
		return http.StatusInternalServerError, body
	case errors.Is(err, controllers.ErrNotFound):
		body.Error, body.Message = CodeNotFound, err.Error()
		return http.StatusNotFound, body
	case errors.Is(err, storage.ErrStorageDisabled):
		body.Error, body.Message = CodeUnavailable, err.Error()
		return http.StatusServiceUnavailable, body
	default:
		body.Error, body.Message = CodeInternal, "internal server error"
		return http.StatusInternalServerError, body
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("code", body.Error),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorLogger.Error("request failed", fields...)
	} else {
		logging.AppLogger.Warn("request rejected", fields...)
	}
	writeJSON(w, status, body)
}

// NotFound answers unmatched routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorBody{
		Success: false,
		Error:   CodeNotFound,
		Message: "route " + r.Method + " " + r.URL.Path + " not found",
	})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{
		Success: false,
		Error:   "METHOD_NOT_ALLOWED",
		Message: "method " + r.Method + " not allowed on " + r.URL.Path,
	})
}
