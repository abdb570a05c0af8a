package broker

import (
	"fmt"
	"strings"
)

// Event types carried over the broker.
const (
	EventIdentityChanged = "identity.changed"
	EventSyncRun         = "sync.run"
)

// Actions accepted on the request topic.
const (
	ActionProvisionIdentity = "provision_identity"
	ActionSyncRun           = "sync_run"
	ActionPushAttribute     = "push_attribute"
)

// BuildTopic builds a topic string for the message broker
// Format: events/{event_type} (e.g., events/identity.changed)
func BuildTopic(eventType string) string {
	return fmt.Sprintf("events/%s", eventType)
}

// ParseTopic parses a topic string back to components
func ParseTopic(topic string) (eventType string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 2 || parts[0] != "events" {
		return "", false
	}
	return parts[1], true
}
