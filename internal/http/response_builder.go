package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"finledger/internal/auth"
	"finledger/internal/core"
	applog "finledger/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// classify maps an error onto its HTTP status and log category.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, applog.ErrorTypeAuth
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, applog.ErrorTypeConflict
	case errors.Is(err, core.ErrConcurrency):
		return http.StatusServiceUnavailable, applog.ErrorTypeConcurrency
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, applog.ErrorTypeInternal
	}
	return http.StatusInternalServerError, applog.ErrorTypeInternal
}

// writeError sends {"error": message}. Messages of unclassified errors stay
// in the log and the client sees a generic text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()

	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusInternalServerError:
		msg = "internal server error"
	}

	logger := applog.FromContext(r.Context())
	op := operationFor(r.Method, routeTemplate(r))
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, kind, op, nil)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, kind,
			applog.FieldError, msg)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// operationFor names the operation of a request for the error log.
func operationFor(method, route string) string {
	switch {
	case strings.HasSuffix(route, "/transfers"):
		return applog.OpTransfer
	case strings.HasSuffix(route, "/recurring/run"):
		return applog.OpCatchUp
	case strings.HasSuffix(route, "/verify"):
		return applog.OpVerify
	}
	switch method {
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	}
	if strings.HasSuffix(route, "}") {
		return applog.OpRead
	}
	return applog.OpList
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
