package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/telemetry"
)

// Transport-level error codes.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeInternal     = apperr.CodeInternal
)

// envelope wraps every API response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: message}})
}

// statusFor maps an error kind to an HTTP status. Validation failures use
// validationStatus since parse and from-parsed report them differently.
func statusFor(kind apperr.Kind, validationStatus int) int {
	switch kind {
	case apperr.KindValidation:
		return validationStatus
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the envelope. Server-side failures are logged
// and reported; unclassified errors never leak their text to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, validationStatus int) {
	status := statusFor(apperr.KindOf(err), validationStatus)
	body := &errorBody{Code: codeInternal, Message: "internal server error"}
	if ae, ok := apperr.As(err); ok {
		body = &errorBody{Code: ae.Code, Message: ae.Message, Details: ae.Details}
	}

	if status >= http.StatusInternalServerError {
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.log.Error("request failed", "route", route, "code", body.Code, "error", err)
		telemetry.CaptureError(err, "http", map[string]string{"route": route, "code": body.Code})
	}

	writeJSON(w, status, envelope{Error: body})
}
