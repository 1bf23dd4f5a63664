package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/requestid"
)

// Response is the envelope of every JSON body.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

func respondMeta(w http.ResponseWriter, status int, data any, meta map[string]any) {
	writeJSON(w, status, Response{Data: data, Meta: meta})
}

// fail classifies err, logs it and writes the error envelope. Client errors
// log at warn, server errors at error.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorFor(err)
	a.failWith(w, r, status, detail, err)
}

func (a *API) failWith(w http.ResponseWriter, r *http.Request, status int, detail *ErrorDetail, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.log.LogAttrs(r.Context(), level, "request error",
		slog.String("request_id", requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("httpapi"),
	)
	writeJSON(w, status, Response{Error: detail})
}
