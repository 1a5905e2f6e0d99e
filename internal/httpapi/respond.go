package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

// errorBody matches the spec's user-visible error shape: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeBadRequest(w http.ResponseWriter, detail string)   { writeDetail(w, http.StatusBadRequest, detail) }
func writeNotFound(w http.ResponseWriter, detail string)     { writeDetail(w, http.StatusNotFound, detail) }
func writeConflict(w http.ResponseWriter, detail string)     { writeDetail(w, http.StatusConflict, detail) }
func writeUnauthorized(w http.ResponseWriter, detail string) { writeDetail(w, http.StatusUnauthorized, detail) }
func writeForbidden(w http.ResponseWriter, detail string)    { writeDetail(w, http.StatusForbidden, detail) }

// writeStoreError maps a store-layer error to the matching HTTP status,
// per the spec's error-kind -> status policy; anything unrecognized becomes
// a 500 internal error. Neither this function nor its callers log the error.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeNotFound(w, "not found")
	case errors.Is(err, store.ErrConflict):
		writeConflict(w, "conflict")
	case errors.Is(err, store.ErrInvalidInput):
		writeBadRequest(w, "invalid input")
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
