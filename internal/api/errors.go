package api

import (
	"errors"
	"net/http"

	"cryptflow/internal/errs"
	"cryptflow/internal/response"
)

// StatusClientClosedRequest is the de facto status for a request the client
// abandoned.
const StatusClientClosedRequest = 499

type errorMapping struct {
	kind    error
	status  int
	code    string
	message string
}

// checked in order; the first matching kind wins
var errorMappings = []errorMapping{
	{errs.ErrCancelled, StatusClientClosedRequest, "cancelled", "The request was cancelled"},
	{errs.ErrEmptyUpload, http.StatusBadRequest, "empty_upload", "The uploaded file is empty"},
	{errs.ErrValidation, http.StatusBadRequest, "bad_request", "The request is invalid"},
	{errs.ErrPartLimitExceeded, http.StatusRequestEntityTooLarge, "size_too_large", "The file exceeds the maximum supported size"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found", "The file does not exist"},
	{errs.ErrMissingEncryptionKey, http.StatusInternalServerError, "no_encryption_key", "The file has no encryption key"},
	{errs.ErrKeyUnwrap, http.StatusInternalServerError, "invalid_encryption_key", "The file's encryption key is invalid"},
	{errs.ErrCorruptObject, http.StatusInternalServerError, "corrupt_object", "The stored file is corrupt"},
	{errs.ErrTransport, http.StatusBadGateway, "storage_unavailable", "The object store request failed"},
}

// statusFor maps a pipeline error to an HTTP status and error body.
func statusFor(err error) (int, *response.ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			body := &response.ErrorResponse{Code: m.code, Message: m.message}
			if m.status < http.StatusInternalServerError {
				body.Hint = err.Error()
			}
			return m.status, body
		}
	}
	return http.StatusInternalServerError, &response.ErrorResponse{Code: "internal", Message: "Internal server error"}
}

// writeError writes a standardized error response
func writeError(w http.ResponseWriter, err error) int {
	status, body := statusFor(err)
	body.Write(w, status)
	return status
}
