package httpapi

import (
	"net/http"
	"strconv"
)

// pathInt64 reads a net/http.ServeMux {name} path wildcard as an int64.
func pathInt64(r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
