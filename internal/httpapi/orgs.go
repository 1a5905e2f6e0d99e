package httpapi

import (
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

type createOrgRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

func (s *server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	org, err := s.deps.Store.CreateOrg(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

type createProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

func (s *server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathInt64(r, "org_id")
	if !ok {
		writeBadRequest(w, "invalid org_id")
		return
	}

	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	project, err := s.deps.Store.CreateProject(r.Context(), orgID, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

type createAPIKeyResponse struct {
	APIKey    string `json:"api_key"`
	Prefix    string `json:"prefix"`
	ProjectID int64  `json:"project_id"`
}

func (s *server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "project_id")
	if !ok {
		writeBadRequest(w, "invalid project_id")
		return
	}

	if _, err := s.deps.Store.GetProject(r.Context(), projectID); err != nil {
		if err == store.ErrNotFound {
			writeNotFound(w, "project not found")
			return
		}
		writeStoreError(w, err)
		return
	}

	raw, key, err := s.deps.Store.CreateAPIKey(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{APIKey: raw, Prefix: key.Prefix, ProjectID: key.ProjectID})
}
