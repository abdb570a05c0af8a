// Package services glues the compiler, builder, executor and protection
// state machine into provisioning and link-lifecycle operations.
package services

import (
	"context"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// MappingStore reads provisioning configuration.
type MappingStore interface {
	System(ctx context.Context, id string) (*models.System, error)
	// ProvisioningMapping returns the PROVISIONING system mapping for the
	// system and entity type, nil when none is configured.
	ProvisioningMapping(ctx context.Context, systemID string, entityType models.EntityType) (*models.SystemMapping, error)
	Defaults(ctx context.Context, systemMappingID string) ([]models.AttributeMapping, error)
	// OverloadsForIdentity returns the role-contributed overloads of every
	// role the identity holds against the mapping.
	OverloadsForIdentity(ctx context.Context, systemMappingID, identityID string) ([]models.RoleAttributeMapping, error)
}

// AccountStore reads and mutates accounts and identity-account links.
type AccountStore interface {
	ListByIdentity(ctx context.Context, identityID string) ([]models.Account, error)
	Update(ctx context.Context, acc *models.Account) error
	Delete(ctx context.Context, id string) error
	LinksForAccount(ctx context.Context, accountID string) ([]models.IdentityAccount, error)
	AddLink(ctx context.Context, link *models.IdentityAccount) error
	RemoveLink(ctx context.Context, linkID string) error
	RemoveLinksForAccount(ctx context.Context, accountID string) error
}

// IdentityStore reads local identities.
type IdentityStore interface {
	Get(ctx context.Context, id string) (*models.Identity, error)
}

// EventPublisher pushes engine outcomes to the event bus. Implementations
// must never receive confidential values.
type EventPublisher interface {
	Publish(eventType string, data map[string]any) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(string, map[string]any) error { return nil }
