// Package sync drives synchronization runs: it enumerates target-system
// records through a connector, classifies each against local state and
// executes the configured action, with per-item failure isolation and
// append-only run logging.
package sync

import (
	"context"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// ConfigStore reads synchronization configurations and owns the single-flight
// running flag.
type ConfigStore interface {
	Get(ctx context.Context, id string) (*models.SyncConfig, error)
	// AcquireRun atomically flips running from false to true. It reports
	// false when another run already holds the flag.
	AcquireRun(ctx context.Context, id string) (bool, error)
	// ReleaseRun clears the running flag unconditionally and persists the
	// last-seen token.
	ReleaseRun(ctx context.Context, id string, token string) error
	// ResetRunning clears every persisted running flag; used by the
	// startup recovery sweep after a crash.
	ResetRunning(ctx context.Context) (int, error)
}

// MappingStore reads the provisioning/synchronization configuration entities.
type MappingStore interface {
	SystemMapping(ctx context.Context, id string) (*models.SystemMapping, error)
	System(ctx context.Context, id string) (*models.System, error)
	Defaults(ctx context.Context, systemMappingID string) ([]models.AttributeMapping, error)
}

// IdentityStore reads and mutates local identities.
type IdentityStore interface {
	Get(ctx context.Context, id string) (*models.Identity, error)
	List(ctx context.Context) ([]models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) error
	Update(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, id string) error
}

// AccountStore reads and mutates accounts and identity-account links.
type AccountStore interface {
	FindByUID(ctx context.Context, systemID, uid string) (*models.Account, error)
	ListBySystem(ctx context.Context, systemID string) ([]models.Account, error)
	ListByIdentity(ctx context.Context, identityID string) ([]models.Account, error)
	Create(ctx context.Context, acc *models.Account) error
	Delete(ctx context.Context, id string) error
	LinksForAccount(ctx context.Context, accountID string) ([]models.IdentityAccount, error)
	AddLink(ctx context.Context, link *models.IdentityAccount) error
	RemoveLinksForAccount(ctx context.Context, accountID string) error
}

// RunLogStore is the append-only run logger sink.
type RunLogStore interface {
	CreateRun(ctx context.Context, run *models.SyncLog) error
	FinishRun(ctx context.Context, run *models.SyncLog) error
	// LogItem files one per-item outcome under the bucket for the executed
	// action, creating the bucket on first use and incrementing its count.
	LogItem(ctx context.Context, syncLogID, action string, item *models.SyncItemLog) error
}

// Provisioner pushes local entity state to a target-system account.
type Provisioner interface {
	ProvisionAccount(ctx context.Context, identity *models.Identity, account *models.Account, isCreate bool) error
}

// Linker applies link-lifecycle semantics, including the protection state
// machine on last-ownership-link removal.
type Linker interface {
	UnlinkAccount(ctx context.Context, account *models.Account) error
}
