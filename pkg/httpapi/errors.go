package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/validator"
)

// HTTPError pairs a status code with a stable machine-readable code.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string { return e.Key }

var (
	ErrBadRequest           = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnsupportedMediaType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrRequestTooLarge      = HTTPError{Code: http.StatusRequestEntityTooLarge, Key: "request_entity_too_large"}
	ErrNotFound             = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed     = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrTooManyRequests      = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternal             = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
)

// domainErrors maps package sentinels to responses. Order matters: the
// first match wins, so the more specific sentinels come first.
var domainErrors = []struct {
	target error
	resp   HTTPError
	msg    string
}{
	{feature.ErrFlagNotFound, HTTPError{http.StatusNotFound, "flag_not_found"}, ""},
	{feature.ErrFlagExists, HTTPError{http.StatusConflict, "flag_exists"}, ""},
	{feature.ErrReadOnlySource, HTTPError{http.StatusConflict, "read_only_source"}, ""},
	{feature.ErrInvalidFlag, HTTPError{http.StatusUnprocessableEntity, "invalid_flag"}, ""},
	{feature.ErrStoreUnavailable, HTTPError{http.StatusServiceUnavailable, "store_unavailable"}, "flag store is unavailable"},
	{feature.ErrPersistFailed, HTTPError{http.StatusInternalServerError, "persist_failed"}, "flag change could not be persisted"},
	{abuse.ErrMissingIP, HTTPError{http.StatusBadRequest, "missing_ip"}, ""},
	{abuse.ErrRegistrationDisabled, HTTPError{http.StatusForbidden, "registration_disabled"}, ""},
	{abuse.ErrAutomatedRegistration, HTTPError{http.StatusForbidden, "registration_rejected"}, ""},
	{abuse.ErrBlocked, HTTPError{http.StatusTooManyRequests, "blocked"}, ""},
	{abuse.ErrTooManyAttempts, HTTPError{http.StatusTooManyRequests, "too_many_attempts"}, ""},
	{abuse.ErrStoreUnavailable, HTTPError{http.StatusServiceUnavailable, "store_unavailable"}, "registration checks are unavailable"},
}

// errorFor classifies err into a status code and an ErrorDetail. Messages of
// 5xx errors never leak the wrapped cause.
func errorFor(err error) (int, *ErrorDetail) {
	if ve := validator.ExtractValidationErrors(err); ve != nil {
		detail := &ErrorDetail{
			Code:    "validation_error",
			Message: "request validation failed",
			Details: make(map[string][]string, len(ve)),
		}
		for _, field := range ve.Fields() {
			detail.Details[field] = ve.Get(field)
		}
		return http.StatusUnprocessableEntity, detail
	}

	for _, de := range domainErrors {
		if errors.Is(err, de.target) {
			msg := de.msg
			if msg == "" {
				msg = de.target.Error()
			}
			return de.resp.Code, &ErrorDetail{Code: de.resp.Key, Message: msg}
		}
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		var me *messageError
		if errors.As(err, &me) {
			msg = me.msg
		}
		return httpErr.Code, &ErrorDetail{Code: httpErr.Key, Message: msg}
	}

	return http.StatusInternalServerError, &ErrorDetail{
		Code:    ErrInternal.Key,
		Message: "an error occurred processing your request",
	}
}

// messageError attaches a client-facing message to an HTTPError.
type messageError struct {
	err HTTPError
	msg string
}

func (e *messageError) Error() string { return e.err.Key + ": " + e.msg }
func (e *messageError) Unwrap() error { return e.err }

func withMessage(err HTTPError, msg string) error {
	return &messageError{err: err, msg: msg}
}
