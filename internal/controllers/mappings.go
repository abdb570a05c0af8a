package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/repository"
	"github.com/piougy/CzechIdMng-sub011/internal/services"
)

// MappingsHandler manages attribute mappings over HTTP. Writes invalidate
// the compiled-attribute cache so the next provisioning run recompiles.
type MappingsHandler struct {
	repo         *repository.MappingRepository
	provisioning *services.Provisioning
}

func NewMappingsHandler(repo *repository.MappingRepository, provisioning *services.Provisioning) *MappingsHandler {
	return &MappingsHandler{
		repo:         repo,
		provisioning: provisioning,
	}
}

type upsertMappingRequest struct {
	SystemMappingID       string `json:"system_mapping_id"`
	SchemaAttribute       string `json:"schema_attribute"`
	Multivalued           bool   `json:"multivalued"`
	IdmPropertyName       string `json:"idm_property_name"`
	Extended              bool   `json:"extended"`
	Strategy              string `json:"strategy"`
	UID                   bool   `json:"uid"`
	EntityAttribute       bool   `json:"entity_attribute"`
	PasswordAttribute     bool   `json:"password_attribute"`
	Confidential          bool   `json:"confidential"`
	DisabledAttribute     bool   `json:"disabled_attribute"`
	SendOnlyIfNotNull     bool   `json:"send_only_if_not_null"`
	TransformToResource   string `json:"transform_to_resource"`
	TransformFromResource string `json:"transform_from_resource"`
}

func (h *MappingsHandler) HandleListMappings(w http.ResponseWriter, r *http.Request) {
	systemMappingID := strings.TrimSpace(r.URL.Query().Get("system_mapping_id"))
	if systemMappingID == "" {
		http.Error(w, "system_mapping_id is required", http.StatusBadRequest)
		return
	}

	mappings, err := h.repo.Defaults(r.Context(), systemMappingID)
	if err != nil {
		http.Error(w, "Failed to load mappings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"mappings": mappings,
		"count":    len(mappings),
	})
}

func (h *MappingsHandler) HandleUpsertMapping(w http.ResponseWriter, r *http.Request) {
	var req upsertMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	systemMappingID := strings.TrimSpace(req.SystemMappingID)
	schemaAttribute := strings.TrimSpace(req.SchemaAttribute)
	if systemMappingID == "" || schemaAttribute == "" {
		http.Error(w, "system_mapping_id/schema_attribute are required", http.StatusBadRequest)
		return
	}

	strategy := models.StrategyType(strings.ToUpper(strings.TrimSpace(req.Strategy)))
	if strategy == "" {
		strategy = models.StrategySet
	}
	switch strategy {
	case models.StrategySet, models.StrategyCreate, models.StrategyWriteIfNull,
		models.StrategyMerge, models.StrategyAuthoritativeMerge:
	default:
		http.Error(w, "unknown strategy: "+string(strategy), http.StatusBadRequest)
		return
	}

	row, err := h.repo.UpsertAttributeMapping(r.Context(), &models.AttributeMapping{
		SystemMappingID:       systemMappingID,
		SchemaAttribute:       schemaAttribute,
		Multivalued:           req.Multivalued,
		IdmPropertyName:       strings.TrimSpace(req.IdmPropertyName),
		Extended:              req.Extended,
		Strategy:              strategy,
		UID:                   req.UID,
		EntityAttribute:       req.EntityAttribute,
		PasswordAttribute:     req.PasswordAttribute,
		Confidential:          req.Confidential,
		DisabledAttribute:     req.DisabledAttribute,
		SendOnlyIfNotNull:     req.SendOnlyIfNotNull,
		TransformToResource:   strings.TrimSpace(req.TransformToResource),
		TransformFromResource: strings.TrimSpace(req.TransformFromResource),
	})
	if err != nil {
		http.Error(w, "Failed to save mapping", http.StatusInternalServerError)
		return
	}

	h.provisioning.ClearCache()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"mapping": row,
	})
}

func (h *MappingsHandler) HandleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteAttributeMapping(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete mapping", http.StatusInternalServerError)
		return
	}

	h.provisioning.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
