package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/piougy/CzechIdMng-sub011/internal/broker"
)

// APIHandler handles HTTP requests and publishes to MQTT (async)
type APIHandler struct {
	publisher *broker.Publisher
	apiKey    string
}

func NewAPIHandler(publisher *broker.Publisher, apiKey string) *APIHandler {
	return &APIHandler{
		publisher: publisher,
		apiKey:    apiKey,
	}
}

// AsyncResponse is returned immediately after publishing to MQTT
type AsyncResponse struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	ResponseTopic string `json:"response_topic"`
}

// HandleRunSync handles POST /api/sync/{id}/run
// Publishes to MQTT and returns immediately with request_id
func (h *APIHandler) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	configID := vars["id"]

	h.publishRequest(w, broker.ActionSyncRun, map[string]interface{}{
		"sync_config_id": configID,
	})
}

// HandleProvisionIdentity handles POST /api/identities/{id}/provision
// Publishes to MQTT and returns immediately with request_id
func (h *APIHandler) HandleProvisionIdentity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identityID := vars["id"]

	h.publishRequest(w, broker.ActionProvisionIdentity, map[string]interface{}{
		"identity_id": identityID,
	})
}

// HandlePushAttribute handles POST /api/identities/{id}/push/{attribute}
// Query params: system_id
func (h *APIHandler) HandlePushAttribute(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identityID := vars["id"]
	attribute := vars["attribute"]
	systemID := r.URL.Query().Get("system_id")

	if systemID == "" {
		http.Error(w, "system_id query parameter is required", http.StatusBadRequest)
		return
	}

	h.publishRequest(w, broker.ActionPushAttribute, map[string]interface{}{
		"identity_id":      identityID,
		"system_id":        systemID,
		"schema_attribute": attribute,
	})
}

func (h *APIHandler) publishRequest(w http.ResponseWriter, action string, params map[string]interface{}) {
	requestID := uuid.New().String()
	req := broker.RequestMessage{
		RequestID: requestID,
		APIKey:    h.apiKey,
		Action:    action,
		Params:    params,
	}

	payload, _ := json.Marshal(req)
	topic := "requests/" + action
	if err := h.publisher.PublishRaw(topic, payload); err != nil {
		log.Printf("[api-handler] Failed to publish request: %v", err)
		http.Error(w, "Failed to send request", http.StatusInternalServerError)
		return
	}

	log.Printf("[api-handler] Published request %s to %s", requestID, topic)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AsyncResponse{
		RequestID:     requestID,
		Status:        "pending",
		ResponseTopic: fmt.Sprintf("responses/%s", requestID),
	})
}
