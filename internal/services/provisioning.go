package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/compiler"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/provision"
)

// Provisioning resolves the effective attribute set for an identity/account
// pair and dispatches the resulting write instruction.
type Provisioning struct {
	mappings   MappingStore
	identities IdentityStore
	accounts   AccountStore
	compiled   *compiler.Cached
	builder    *provision.Builder
	executor   *provision.Executor
	registry   connector.Registry
	publisher  EventPublisher
	now        func() time.Time
}

// NewProvisioning wires a provisioning service.
func NewProvisioning(mappings MappingStore, identities IdentityStore, accounts AccountStore, compiled *compiler.Cached, builder *provision.Builder, executor *provision.Executor, registry connector.Registry, publisher EventPublisher) *Provisioning {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Provisioning{
		mappings:   mappings,
		identities: identities,
		accounts:   accounts,
		compiled:   compiled,
		builder:    builder,
		executor:   executor,
		registry:   registry,
		publisher:  publisher,
		now:        time.Now,
	}
}

// ClearCache invalidates compiled attribute sets; call whenever mappings or
// role-system attribute assignments change.
func (s *Provisioning) ClearCache() {
	s.compiled.ClearCache()
}

// ProvisionAccount pushes the identity's state to one account. Protected
// accounts are suppressed: the account exists locally and remotely but no
// remote write happens.
func (s *Provisioning) ProvisionAccount(ctx context.Context, identity *models.Identity, account *models.Account, isCreate bool) error {
	if provision.Suppressed(account) {
		log.Printf("[provisioning] account %s is protected, write suppressed", account.UID)
		return nil
	}

	system, _, compiled, err := s.resolve(ctx, account.SystemID, identity.ID)
	if err != nil {
		return err
	}

	var current *connector.Record
	if !isCreate {
		current, err = s.readCurrent(ctx, system, account.UID)
		if err != nil {
			return err
		}
	}

	inst, err := s.builder.Build(compiled, identity, system.ID, current, isCreate)
	if err != nil {
		return err
	}
	if err := s.executor.Execute(ctx, system, inst); err != nil {
		return err
	}

	// A changed UID is a rename of the external identifier; mirror it on
	// the local account.
	if inst.NewUID != "" && inst.NewUID != account.UID {
		account.UID = inst.NewUID
		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to store renamed uid: %w", err)
		}
	}

	s.publishOutcome(system, inst)
	return nil
}

// ProvisionIdentity pushes the identity's state to every owned account,
// typically in response to an entity-change event. Per-account failures do
// not stop the remaining accounts; the first error is reported.
func (s *Provisioning) ProvisionIdentity(ctx context.Context, identityID string) error {
	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return err
	}
	if identity == nil {
		return faults.Item("identity_not_found", map[string]any{"identity": identityID})
	}
	accounts, err := s.accounts.ListByIdentity(ctx, identityID)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range accounts {
		if err := s.ProvisionAccount(ctx, identity, &accounts[i], false); err != nil {
			log.Printf("[provisioning] account %s failed: %v", accounts[i].UID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// PushAttribute writes a single changed attribute to one account without
// rebuilding the whole instruction set.
func (s *Provisioning) PushAttribute(ctx context.Context, identity *models.Identity, account *models.Account, schemaAttribute string) error {
	if provision.Suppressed(account) {
		log.Printf("[provisioning] account %s is protected, write suppressed", account.UID)
		return nil
	}

	system, _, compiled, err := s.resolve(ctx, account.SystemID, identity.ID)
	if err != nil {
		return err
	}
	current, err := s.readCurrent(ctx, system, account.UID)
	if err != nil {
		return err
	}
	inst, err := s.builder.BuildAttribute(compiled, identity, system.ID, current, schemaAttribute)
	if err != nil {
		return err
	}
	if err := s.executor.Execute(ctx, system, inst); err != nil {
		return err
	}
	s.publishOutcome(system, inst)
	return nil
}

func (s *Provisioning) resolve(ctx context.Context, systemID, identityID string) (*models.System, *models.SystemMapping, []compiler.EffectiveAttribute, error) {
	system, err := s.mappings.System(ctx, systemID)
	if err != nil {
		return nil, nil, nil, err
	}
	if system == nil {
		return nil, nil, nil, faults.Configuration("system_not_found", map[string]any{"system": systemID})
	}
	mapping, err := s.mappings.ProvisioningMapping(ctx, systemID, models.EntityTypeIdentity)
	if err != nil {
		return nil, nil, nil, err
	}
	if mapping == nil {
		return nil, nil, nil, faults.Configuration("provisioning_mapping_missing", map[string]any{
			"system": system.Name,
		})
	}
	defaults, err := s.mappings.Defaults(ctx, mapping.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	overloads, err := s.mappings.OverloadsForIdentity(ctx, mapping.ID, identityID)
	if err != nil {
		return nil, nil, nil, err
	}
	compiled, err := s.compiled.Compile(mapping.ID, defaults, overloads)
	if err != nil {
		return nil, nil, nil, err
	}
	return system, mapping, compiled, nil
}

func (s *Provisioning) readCurrent(ctx context.Context, system *models.System, uid string) (*connector.Record, error) {
	conn, ok := s.registry.Get(system.ConnectorKey)
	if !ok {
		return nil, faults.Configuration("connector_not_registered", map[string]any{
			"connector": system.ConnectorKey,
		})
	}
	return conn.ReadObject(ctx, uid)
}

// publishOutcome emits a provisioning event. Confidential attribute values
// never leave the instruction; only attribute names are published.
func (s *Provisioning) publishOutcome(system *models.System, inst *provision.Instruction) {
	err := s.publisher.Publish("provisioning."+string(inst.Kind), map[string]any{
		"system":     system.Name,
		"uid":        inst.UID,
		"new_uid":    inst.NewUID,
		"attributes": inst.AttributeNames(),
	})
	if err != nil {
		log.Printf("[provisioning] failed to publish event: %v", err)
	}
}
