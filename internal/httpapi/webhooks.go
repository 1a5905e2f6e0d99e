package httpapi

import (
	"net/http"

	"github.com/ridgeline-io/ridgeline/internal/store"
)

type createWebhookRequest struct {
	URL    string `json:"url" validate:"required,url"`
	Secret string `json:"secret"`
}

func (s *server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "id")
	if !ok || projectID != authProjectID(r.Context()) {
		writeBadRequest(w, "invalid project_id")
		return
	}

	var req createWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	webhook, err := s.deps.Store.CreateWebhook(r.Context(), projectID, req.URL, req.Secret)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, webhook)
}

func (s *server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathInt64(r, "id")
	if !ok || projectID != authProjectID(r.Context()) {
		writeJSON(w, http.StatusOK, []store.WebhookSubscription{})
		return
	}

	webhooks, err := s.deps.Store.ListWebhooks(r.Context(), projectID, false)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhooks)
}

func (s *server) webhookForRequest(w http.ResponseWriter, r *http.Request) (store.WebhookSubscription, bool) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeBadRequest(w, "invalid webhook id")
		return store.WebhookSubscription{}, false
	}
	webhook, err := s.deps.Store.GetWebhook(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return store.WebhookSubscription{}, false
	}
	if webhook.ProjectID != authProjectID(r.Context()) {
		writeNotFound(w, "not found")
		return store.WebhookSubscription{}, false
	}
	return webhook, true
}

func (s *server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	webhook, ok := s.webhookForRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (s *server) handleDisableWebhook(w http.ResponseWriter, r *http.Request) {
	webhook, ok := s.webhookForRequest(w, r)
	if !ok {
		return
	}
	if err := s.deps.Store.DisableWebhook(r.Context(), webhook.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	webhook.Enabled = false
	writeJSON(w, http.StatusOK, webhook)
}

type circuitStatusResponse struct {
	WebhookID      int64         `json:"webhook_id"`
	URL            string        `json:"url"`
	CircuitBreaker circuitStatus `json:"circuit_breaker"`
}

type circuitStatus struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
	OpenedAt string `json:"opened_at"`
}

func (s *server) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	webhook, ok := s.webhookForRequest(w, r)
	if !ok {
		return
	}
	stats, err := s.deps.Breaker.Stats(r.Context(), webhook.URL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, circuitStatusResponse{
		WebhookID: webhook.ID,
		URL:       webhook.URL,
		CircuitBreaker: circuitStatus{
			State:    stats.State,
			Failures: stats.Failures,
			OpenedAt: stats.OpenedAt,
		},
	})
}
