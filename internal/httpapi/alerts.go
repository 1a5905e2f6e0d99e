package httpapi

import (
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

func (s *server) handleListAlertsForDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeBadRequest(w, "invalid device id")
		return
	}
	device, err := s.deps.Store.GetDevice(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if device.ProjectID != authProjectID(r.Context()) {
		writeJSON(w, http.StatusOK, []store.Alert{})
		return
	}

	alerts, err := s.deps.Store.ListAlertsForDevice(r.Context(), device.ID, queryLimit(r, 100, 1000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *server) handleListAlertsForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "id")
	if !ok || projectID != authProjectID(r.Context()) {
		writeJSON(w, http.StatusOK, []store.Alert{})
		return
	}

	alerts, err := s.deps.Store.ListAlerts(r.Context(), projectID, queryLimit(r, 100, 1000))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}
