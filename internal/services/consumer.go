package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/broker"
	syncer "github.com/piougy/CzechIdMng-sub011/internal/sync"
)

type ConsumerService struct {
	auth         *AuthService
	provisioning *Provisioning
	identities   IdentityStore
	accounts     AccountStore
	engine       *syncer.Engine
	timeout      time.Duration
}

func NewConsumerService(auth *AuthService, provisioning *Provisioning, identities IdentityStore, accounts AccountStore, engine *syncer.Engine, timeout time.Duration) *ConsumerService {
	return &ConsumerService{
		auth:         auth,
		provisioning: provisioning,
		identities:   identities,
		accounts:     accounts,
		engine:       engine,
		timeout:      timeout,
	}
}

// RegisterHandlers registers the action and event handlers with the consumer
func (s *ConsumerService) RegisterHandlers(consumer *broker.Consumer) {
	consumer.RegisterHandler(broker.ActionProvisionIdentity, s.handleProvisionIdentity)
	consumer.RegisterHandler(broker.ActionSyncRun, s.handleSyncRun)
	consumer.RegisterHandler(broker.ActionPushAttribute, s.handlePushAttribute)

	consumer.RegisterEventHandler(broker.EventIdentityChanged, s.handleIdentityChangedEvent)
	consumer.RegisterEventHandler(broker.EventSyncRun, s.handleSyncRunEvent)
}

// handleIdentityChangedEvent provisions every account of a changed identity.
// Events arrive through the webhook intake, which already authenticated the
// sender; they carry no response topic.
func (s *ConsumerService) handleIdentityChangedEvent(_ string, data map[string]interface{}) {
	ctx, cancel := s.newContext()
	defer cancel()

	identityID, _ := data["identity_id"].(string)
	if identityID == "" {
		log.Printf("[consumer] identity.changed event without identity_id, dropped")
		return
	}
	if err := s.provisioning.ProvisionIdentity(ctx, identityID); err != nil {
		log.Printf("[consumer] Provisioning error for %s: %v", identityID, err)
	}
}

// handleSyncRunEvent starts a synchronization run requested by event.
func (s *ConsumerService) handleSyncRunEvent(_ string, data map[string]interface{}) {
	ctx, cancel := s.newContext()
	defer cancel()

	configID, _ := data["sync_config_id"].(string)
	if configID == "" {
		log.Printf("[consumer] sync.run event without sync_config_id, dropped")
		return
	}
	run, err := s.engine.Run(ctx, configID)
	if err != nil {
		if errors.Is(err, syncer.ErrAlreadyRunning) {
			log.Printf("[consumer] sync.run event for %s: already running", configID)
			return
		}
		log.Printf("[consumer] Sync run error for %s: %v", configID, err)
		return
	}
	log.Printf("[consumer] sync.run event for %s finished: run=%s state=%s", configID, run.ID, run.State)
}

// handleProvisionIdentity pushes the current state of one identity to all
// systems it holds accounts on.
// Request params:
//   - identity_id: identity to provision
func (s *ConsumerService) handleProvisionIdentity(req *broker.RequestMessage) *broker.ResponseMessage {
	ctx, cancel := s.newContext()
	defer cancel()

	service, err := s.auth.ValidateAPIKey(ctx, req.APIKey)
	if err != nil {
		return errorResponse(req.RequestID, "unauthorized", err.Error())
	}
	if err := s.auth.ValidateAction(service, broker.ActionProvisionIdentity); err != nil {
		return errorResponse(req.RequestID, "forbidden", err.Error())
	}

	identityID, ok := req.Params["identity_id"].(string)
	if !ok || identityID == "" {
		return errorResponse(req.RequestID, "bad_request", "identity_id is required in params")
	}

	if err := s.provisioning.ProvisionIdentity(ctx, identityID); err != nil {
		log.Printf("[consumer] Provisioning error for %s: %v", identityID, err)
		return errorResponse(req.RequestID, "provisioning_error", err.Error())
	}

	return successResponse(req.RequestID, map[string]interface{}{
		"identity_id": identityID,
	})
}

// handleSyncRun starts a synchronization run for one configuration.
// Request params:
//   - sync_config_id: synchronization configuration to run
func (s *ConsumerService) handleSyncRun(req *broker.RequestMessage) *broker.ResponseMessage {
	ctx, cancel := s.newContext()
	defer cancel()

	service, err := s.auth.ValidateAPIKey(ctx, req.APIKey)
	if err != nil {
		return errorResponse(req.RequestID, "unauthorized", err.Error())
	}
	if err := s.auth.ValidateAction(service, broker.ActionSyncRun); err != nil {
		return errorResponse(req.RequestID, "forbidden", err.Error())
	}

	configID, ok := req.Params["sync_config_id"].(string)
	if !ok || configID == "" {
		return errorResponse(req.RequestID, "bad_request", "sync_config_id is required in params")
	}

	run, err := s.engine.Run(ctx, configID)
	if err != nil {
		if errors.Is(err, syncer.ErrAlreadyRunning) {
			return errorResponse(req.RequestID, "already_running", "Synchronization is already running for this configuration")
		}
		log.Printf("[consumer] Sync run error for %s: %v", configID, err)
		return errorResponse(req.RequestID, "sync_error", err.Error())
	}

	return successResponse(req.RequestID, map[string]interface{}{
		"sync_log_id":    run.ID,
		"state":          string(run.State),
		"contains_error": run.ContainsError,
	})
}

// handlePushAttribute pushes a single mapped attribute to one account.
// Request params:
//   - identity_id: owning identity
//   - system_id: target system
//   - schema_attribute: attribute to push
func (s *ConsumerService) handlePushAttribute(req *broker.RequestMessage) *broker.ResponseMessage {
	ctx, cancel := s.newContext()
	defer cancel()

	service, err := s.auth.ValidateAPIKey(ctx, req.APIKey)
	if err != nil {
		return errorResponse(req.RequestID, "unauthorized", err.Error())
	}
	if err := s.auth.ValidateAction(service, broker.ActionPushAttribute); err != nil {
		return errorResponse(req.RequestID, "forbidden", err.Error())
	}

	identityID, _ := req.Params["identity_id"].(string)
	systemID, _ := req.Params["system_id"].(string)
	schemaAttribute, _ := req.Params["schema_attribute"].(string)
	if identityID == "" || systemID == "" || schemaAttribute == "" {
		return errorResponse(req.RequestID, "bad_request", "identity_id/system_id/schema_attribute are required in params")
	}

	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return errorResponse(req.RequestID, "storage_error", err.Error())
	}
	if identity == nil {
		return errorResponse(req.RequestID, "not_found", "identity "+identityID+" not found")
	}

	accounts, err := s.accounts.ListByIdentity(ctx, identityID)
	if err != nil {
		return errorResponse(req.RequestID, "storage_error", err.Error())
	}

	for i := range accounts {
		if accounts[i].SystemID != systemID {
			continue
		}
		if err := s.provisioning.PushAttribute(ctx, identity, &accounts[i], schemaAttribute); err != nil {
			log.Printf("[consumer] Attribute push error for %s: %v", identityID, err)
			return errorResponse(req.RequestID, "provisioning_error", err.Error())
		}
		return successResponse(req.RequestID, map[string]interface{}{
			"uid":              accounts[i].UID,
			"schema_attribute": schemaAttribute,
		})
	}

	return errorResponse(req.RequestID, "not_found", "identity has no account on system "+systemID)
}

func (s *ConsumerService) newContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

func successResponse(requestID string, data interface{}) *broker.ResponseMessage {
	return &broker.ResponseMessage{
		RequestID: requestID,
		Success:   true,
		Data:      data,
		Error:     nil,
	}
}

func errorResponse(requestID, code, message string) *broker.ResponseMessage {
	return &broker.ResponseMessage{
		RequestID: requestID,
		Success:   false,
		Data:      nil,
		Error: &broker.ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}
