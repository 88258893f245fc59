package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kacperjurak/hyqcore"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/store"
	"github.com/kacperjurak/hyqcore/pkg/validation"
	"github.com/kacperjurak/hyqcore/pkg/worker"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
	// BatchID and RunIDs list the scenarios of a batch that were queued
	// before the failure; those runs still execute.
	BatchID string   `json:"batch_id,omitempty"`
	RunIDs  []string `json:"run_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeErr answers with the status errorStatus picks for err.
func writeErr(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	writeJSON(w, status, resp)
}

func errorResponse(err error) (int, ErrorResponse) {
	status := errorStatus(err)
	resp := ErrorResponse{Error: err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Error = "validation failed"
		resp.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Int("status", status).Msg("request failed")
		resp.Error = http.StatusText(status)
	}
	return status, resp
}

func errorStatus(err error) int {
	var (
		verr   *validation.Error
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr), errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, hyqcore.ErrInvalidParameter),
		errors.Is(err, hyqcore.ErrInvalidWell),
		errors.Is(err, hyqcore.ErrDuplicateWell),
		errors.Is(err, hyqcore.ErrWellRegistered),
		errors.Is(err, hyqcore.ErrNoObservations):
		return http.StatusBadRequest
	case errors.Is(err, hyqcore.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, hyqcore.ErrNumerical):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadBody = errors.New("malformed request body")

// decode reads one JSON document of at most limit bytes into v and
// validates it.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return validation.Struct(v)
}
