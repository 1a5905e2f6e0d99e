package httpapi

import (
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

type createDeviceRequest struct {
	ExternalID string   `json:"external_id" validate:"required,min=1,max=200"`
	Name       string   `json:"name" validate:"required,min=1,max=200"`
	Tags       []string `json:"tags"`
}

func (s *server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "project_id")
	if !ok {
		writeBadRequest(w, "invalid project_id")
		return
	}
	if projectID != authProjectID(r.Context()) {
		writeForbidden(w, "project mismatch")
		return
	}

	var req createDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	device, err := s.deps.Store.CreateDevice(r.Context(), projectID, req.ExternalID, req.Name, req.Tags)
	if err != nil {
		if err == store.ErrConflict {
			writeBadRequest(w, "duplicate external_id")
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "project_id")
	if !ok || projectID != authProjectID(r.Context()) {
		writeJSON(w, http.StatusOK, []store.Device{})
		return
	}

	devices, err := s.deps.Store.ListDevices(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
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
		writeNotFound(w, "not found")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
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
		writeNotFound(w, "not found")
		return
	}
	if err := s.deps.Store.DeleteDevice(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tagsRequest struct {
	Tags []string `json:"tags" validate:"required"`
}

func (s *server) deviceForTagOp(w http.ResponseWriter, r *http.Request) (store.Device, bool) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeBadRequest(w, "invalid device id")
		return store.Device{}, false
	}
	device, err := s.deps.Store.GetDevice(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return store.Device{}, false
	}
	if device.ProjectID != authProjectID(r.Context()) {
		writeNotFound(w, "not found")
		return store.Device{}, false
	}
	return device, true
}

func (s *server) handleReplaceTags(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForTagOp(w, r)
	if !ok {
		return
	}
	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	tags, err := s.deps.Store.ReplaceTags(r.Context(), device.ID, req.Tags)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": device.ID, "tags": tags})
}

func (s *server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForTagOp(w, r)
	if !ok {
		return
	}
	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	tags, err := s.deps.Store.AddTags(r.Context(), device.ID, req.Tags)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": device.ID, "tags": tags})
}

func (s *server) handleRemoveTags(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceForTagOp(w, r)
	if !ok {
		return
	}
	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	tags, err := s.deps.Store.RemoveTags(r.Context(), device.ID, req.Tags)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": device.ID, "tags": tags})
}
