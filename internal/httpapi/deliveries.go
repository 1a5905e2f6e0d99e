package httpapi

import (
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

func (s *server) handleListDeliveriesForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "id")
	if !ok || projectID != authProjectID(r.Context()) {
		// Per the spec: an authenticated-but-mismatched project id gets an
		// empty list rather than a 403, since project scoping here is a
		// visibility filter, not an authorization boundary.
		writeJSON(w, http.StatusOK, []store.WebhookDelivery{})
		return
	}

	var status *store.DeliveryStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := store.DeliveryStatus(raw)
		status = &st
	}

	deliveries, err := s.deps.Store.ListDeliveriesForProject(r.Context(), projectID, status, queryLimit(r, 100, 1000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}
