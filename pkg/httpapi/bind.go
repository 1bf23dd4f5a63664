package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// maxBodyBytes caps request bodies. Flag definitions with many rules are the
// largest legitimate payload.
const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON value from the body into v. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return withMessage(ErrUnsupportedMediaType, "expected application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return withMessage(ErrRequestTooLarge, "request body is too large")
		case errors.Is(err, io.EOF):
			return withMessage(ErrBadRequest, "empty request body")
		default:
			return withMessage(ErrBadRequest, "invalid JSON: "+err.Error())
		}
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return withMessage(ErrBadRequest, "unexpected data after JSON object")
	}
	return nil
}
