package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/piougy/CzechIdMng-sub011/internal/broker"
)

// WebhookService handles change notifications pushed by the IdM core.
type WebhookService interface {
	VerifySignature(payload []byte, signature string) bool
	ProcessWebhook(eventType string, data map[string]interface{}) error
}

type webhookService struct {
	secret    string
	publisher *broker.Publisher
}

// NewWebhookService creates a new webhook service
func NewWebhookService(secret string, publisher *broker.Publisher) WebhookService {
	return &webhookService{
		secret:    secret,
		publisher: publisher,
	}
}

// VerifySignature verifies the webhook signature using HMAC-SHA256
func (s *webhookService) VerifySignature(payload []byte, signature string) bool {
	if s.secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	// Use constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expectedSig)) == 1
}

// ProcessWebhook validates the event and publishes it to the broker
func (s *webhookService) ProcessWebhook(eventType string, data map[string]interface{}) error {
	switch eventType {
	case broker.EventIdentityChanged:
		if extractString(data, "identity_id", "") == "" {
			return fmt.Errorf("identity_id is required in payload")
		}
	case broker.EventSyncRun:
		if extractString(data, "sync_config_id", "") == "" {
			return fmt.Errorf("sync_config_id is required in payload")
		}
	default:
		return fmt.Errorf("unsupported event type: %s", eventType)
	}

	return s.publisher.Publish(eventType, data)
}

// extractString extracts a string value from a map
func extractString(data map[string]interface{}, key, defaultVal string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}
