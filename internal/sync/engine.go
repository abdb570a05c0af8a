package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/piougy/CzechIdMng-sub011/internal/compiler"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/transform"
)

// ErrAlreadyRunning reports a start attempt against a configuration that
// already has a running run. The second start is a no-op.
var ErrAlreadyRunning = errors.New("synchronization already running")

// Engine drives synchronization runs.
type Engine struct {
	configs    ConfigStore
	mappings   MappingStore
	identities IdentityStore
	accounts   AccountStore
	logs       RunLogStore
	connectors connector.Registry
	eval       transform.Evaluator

	provisioner Provisioner
	linker      Linker

	now func() time.Time
}

// NewEngine wires a synchronization engine.
func NewEngine(configs ConfigStore, mappings MappingStore, identities IdentityStore, accounts AccountStore, logs RunLogStore, connectors connector.Registry, eval transform.Evaluator, provisioner Provisioner, linker Linker) *Engine {
	return &Engine{
		configs:     configs,
		mappings:    mappings,
		identities:  identities,
		accounts:    accounts,
		logs:        logs,
		connectors:  connectors,
		eval:        eval,
		provisioner: provisioner,
		linker:      linker,
		now:         time.Now,
	}
}

// RecoverStaleRuns clears running flags left behind by a crashed process.
// Call once on startup before accepting new runs.
func (e *Engine) RecoverStaleRuns(ctx context.Context) (int, error) {
	n, err := e.configs.ResetRunning(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[sync] recovered %d stale running flag(s)", n)
	}
	return n, nil
}

// runState carries everything one run needs.
type runState struct {
	cfg      *models.SyncConfig
	mapping  *models.SystemMapping
	system   *models.System
	compiled []compiler.EffectiveAttribute
	conn     connector.Connector
	run      *models.SyncLog

	seen          map[string]bool
	maxToken      string
	containsError bool

	corrIdx *correlationIndex
}

// Run executes one synchronization run to a terminal state. Configuration
// errors abort before any record is processed; per-record failures are
// recorded and never abort the run. A concurrent start against the same
// configuration returns ErrAlreadyRunning.
func (e *Engine) Run(ctx context.Context, configID string) (*models.SyncLog, error) {
	cfg, err := e.configs.Get(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync config: %w", err)
	}
	if cfg == nil {
		return nil, faults.Configuration("sync_config_not_found", map[string]any{"config": configID})
	}
	if !cfg.Enabled {
		return nil, faults.Configuration("sync_config_disabled", map[string]any{"config": cfg.Name})
	}

	mapping, err := e.mappings.SystemMapping(ctx, cfg.SystemMappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load system mapping: %w", err)
	}
	if mapping == nil {
		return nil, faults.Configuration("system_mapping_not_found", map[string]any{"mapping": cfg.SystemMappingID})
	}
	system, err := e.mappings.System(ctx, mapping.SystemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load system: %w", err)
	}
	if system == nil || system.Disabled {
		return nil, faults.Configuration("system_unavailable", map[string]any{"mapping": mapping.Name})
	}
	defaults, err := e.mappings.Defaults(ctx, mapping.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute mappings: %w", err)
	}
	compiled, err := compiler.Compile(defaults, nil)
	if err != nil {
		return nil, err
	}
	conn, ok := e.connectors.Get(system.ConnectorKey)
	if !ok {
		return nil, faults.Configuration("connector_not_registered", map[string]any{
			"connector": system.ConnectorKey,
		})
	}

	acquired, err := e.configs.AcquireRun(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyRunning
	}

	st := &runState{
		cfg:      cfg,
		mapping:  mapping,
		system:   system,
		compiled: compiled,
		conn:     conn,
		run: &models.SyncLog{
			ID:           uuid.New().String(),
			SyncConfigID: cfg.ID,
			State:        models.RunRunning,
			Started:      e.now(),
			Token:        cfg.Token,
		},
		seen: map[string]bool{},
	}
	// Termination must land even when the caller's context has expired
	// mid-run, otherwise the running flag sticks until the next restart.
	endCtx := context.WithoutCancel(ctx)

	if err := e.logs.CreateRun(ctx, st.run); err != nil {
		_ = e.configs.ReleaseRun(endCtx, cfg.ID, cfg.Token)
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}

	log.Printf("[sync] run %s started config=%s reconciliation=%v", st.run.ID, cfg.Name, cfg.Reconciliation)
	e.execute(ctx, st)

	// A started run always reaches a terminal state and always clears the
	// running flag, even when individual items failed.
	token := st.cfg.Token
	if st.maxToken > token {
		token = st.maxToken
	}
	ended := e.now()
	st.run.Ended = &ended
	st.run.Token = token
	st.run.ContainsError = st.containsError
	if st.containsError {
		st.run.State = models.RunCompletedWithErrors
	} else {
		st.run.State = models.RunCompleted
	}
	if err := e.logs.FinishRun(endCtx, st.run); err != nil {
		log.Printf("[sync] failed to finish run log: %v", err)
	}
	if err := e.configs.ReleaseRun(endCtx, cfg.ID, token); err != nil {
		log.Printf("[sync] failed to release run: %v", err)
	}
	log.Printf("[sync] run %s %s", st.run.ID, st.run.State)
	return st.run, nil
}

func (e *Engine) execute(ctx context.Context, st *runState) {
	var filter *connector.Filter
	if st.cfg.CustomFilter {
		filter = &connector.Filter{
			Attribute: st.cfg.FilterAttribute,
			Operator:  st.cfg.FilterOperator,
			Value:     st.cfg.Token,
		}
	}

	err := st.conn.Enumerate(ctx, filter, func(rec connector.Record) error {
		e.processRecord(ctx, st, rec)
		return nil
	})
	if err != nil {
		e.logOutcome(ctx, st, "ENUMERATE", st.system.Name, err.Error(), models.ResultError)
		return
	}

	if st.cfg.Reconciliation {
		e.reconcileMissingAccounts(ctx, st)
	}
}

// processRecord classifies one enumerated record and executes exactly one
// action. Any failure is recorded as an ERROR item and does not abort the
// run.
func (e *Engine) processRecord(ctx context.Context, st *runState, rec connector.Record) {
	uid := rec.UID
	if uid == "" {
		e.logOutcome(ctx, st, "ENUMERATE", "", "record without uid", models.ResultError)
		return
	}
	if st.cfg.TokenAttribute != "" {
		if v := rec.First(st.cfg.TokenAttribute); v > st.maxToken {
			st.maxToken = v
		}
	}

	account, err := e.accounts.FindByUID(ctx, st.system.ID, uid)
	if err != nil {
		e.logOutcome(ctx, st, "ENUMERATE", uid, err.Error(), models.ResultError)
		return
	}

	if account != nil {
		st.seen[account.ID] = true
		link, err := e.ownershipLink(ctx, account)
		if err != nil {
			e.logOutcome(ctx, st, "ENUMERATE", uid, err.Error(), models.ResultError)
			return
		}
		if link != nil {
			e.handleLinked(ctx, st, rec, account, link)
			return
		}
	}

	identity, err := e.correlate(ctx, st, rec)
	if err != nil {
		e.logOutcome(ctx, st, "CORRELATE", uid, err.Error(), models.ResultError)
		return
	}
	if identity != nil {
		e.handleUnlinked(ctx, st, rec, account, identity)
		return
	}
	e.handleMissingEntity(ctx, st, rec)
}

func (e *Engine) handleLinked(ctx context.Context, st *runState, rec connector.Record, account *models.Account, link *models.IdentityAccount) {
	action := string(st.cfg.LinkedAction)
	switch st.cfg.LinkedAction {
	case models.LinkedIgnore:
		e.logOutcome(ctx, st, action, rec.UID, "linked, ignored", models.ResultOK)
	case models.LinkedUpdateEntity:
		identity, err := e.identities.Get(ctx, link.IdentityID)
		if err == nil && identity == nil {
			err = faults.Item("linked_identity_missing", map[string]any{"identity": link.IdentityID})
		}
		if err == nil {
			err = e.updateEntityFromRecord(ctx, st, identity, rec)
		}
		e.logResult(ctx, st, action, rec.UID, "entity updated from resource", err)
	case models.LinkedUnlink:
		err := e.linker.UnlinkAccount(ctx, account)
		e.logResult(ctx, st, action, rec.UID, "account unlinked", err)
	default:
		e.logOutcome(ctx, st, action, rec.UID, "unknown linked action", models.ResultError)
	}
}

func (e *Engine) handleUnlinked(ctx context.Context, st *runState, rec connector.Record, account *models.Account, identity *models.Identity) {
	action := string(st.cfg.UnlinkedAction)
	switch st.cfg.UnlinkedAction {
	case models.UnlinkedIgnore:
		e.logOutcome(ctx, st, action, rec.UID, "unlinked, ignored", models.ResultOK)
	case models.UnlinkedLink:
		_, err := e.link(ctx, st, identity, account, rec.UID)
		e.logResult(ctx, st, action, rec.UID, "account linked to "+identity.Username, err)
	case models.UnlinkedLinkAndUpdate:
		linked, err := e.link(ctx, st, identity, account, rec.UID)
		if err == nil {
			err = e.provisioner.ProvisionAccount(ctx, identity, linked, false)
		}
		e.logResult(ctx, st, action, rec.UID, "account linked and updated", err)
	default:
		e.logOutcome(ctx, st, action, rec.UID, "unknown unlinked action", models.ResultError)
	}
}

func (e *Engine) handleMissingEntity(ctx context.Context, st *runState, rec connector.Record) {
	action := string(st.cfg.MissingEntityAction)
	switch st.cfg.MissingEntityAction {
	case models.MissingEntityIgnore:
		e.logOutcome(ctx, st, action, rec.UID, "no correlating entity, ignored", models.ResultOK)
	case models.MissingEntityCreate:
		err := e.createEntity(ctx, st, rec)
		e.logResult(ctx, st, action, rec.UID, "entity created", err)
	default:
		e.logOutcome(ctx, st, action, rec.UID, "unknown missing-entity action", models.ResultError)
	}
}

// reconcileMissingAccounts handles every locally linked account the
// enumeration did not encounter.
func (e *Engine) reconcileMissingAccounts(ctx context.Context, st *runState) {
	accounts, err := e.accounts.ListBySystem(ctx, st.system.ID)
	if err != nil {
		e.logOutcome(ctx, st, "RECONCILE", st.system.Name, err.Error(), models.ResultError)
		return
	}
	for i := range accounts {
		account := &accounts[i]
		if st.seen[account.ID] {
			continue
		}
		link, err := e.ownershipLink(ctx, account)
		if err != nil {
			e.logOutcome(ctx, st, "RECONCILE", account.UID, err.Error(), models.ResultError)
			continue
		}
		if link == nil {
			continue
		}
		e.handleMissingAccount(ctx, st, account, link)
	}
}

func (e *Engine) handleMissingAccount(ctx context.Context, st *runState, account *models.Account, link *models.IdentityAccount) {
	action := string(st.cfg.MissingAccountAction)
	switch st.cfg.MissingAccountAction {
	case models.MissingAccountIgnore:
		e.logOutcome(ctx, st, action, account.UID, "missing on resource, ignored", models.ResultOK)
	case models.MissingAccountDeleteEntity:
		err := e.deleteEntity(ctx, account, link)
		e.logResult(ctx, st, action, account.UID, "entity deleted", err)
	case models.MissingAccountCreateAccount:
		identity, err := e.identities.Get(ctx, link.IdentityID)
		if err == nil && identity == nil {
			err = faults.Item("linked_identity_missing", map[string]any{"identity": link.IdentityID})
		}
		if err == nil {
			err = e.provisioner.ProvisionAccount(ctx, identity, account, true)
		}
		e.logResult(ctx, st, action, account.UID, "account re-provisioned", err)
	default:
		e.logOutcome(ctx, st, action, account.UID, "unknown missing-account action", models.ResultError)
	}
}

// correlate matches a remote record to a local entity by the correlation
// attribute. UID-based correlation falls back to the record UID when the
// attribute carries no value.
func (e *Engine) correlate(ctx context.Context, st *runState, rec connector.Record) (*models.Identity, error) {
	attrName := st.cfg.CorrelationAttribute
	if attrName == "" {
		return nil, nil
	}

	var mapped *compiler.EffectiveAttribute
	for i := range st.compiled {
		if st.compiled[i].SchemaAttribute == attrName {
			mapped = &st.compiled[i]
			break
		}
	}
	if mapped == nil || mapped.Default == nil || mapped.Default.IdmPropertyName == "" {
		return nil, faults.Configuration("correlation_attribute_unmapped", map[string]any{
			"attribute": attrName,
		})
	}

	value := rec.First(attrName)
	if value == "" && mapped.UID() {
		value = rec.UID
	}
	if mapped.Default.TransformFromResource != "" {
		transformed, err := e.eval.Evaluate(mapped.Default.TransformFromResource, transform.Context{
			UID:       rec.UID,
			Value:     value,
			Attribute: attrName,
		})
		if err != nil {
			return nil, err
		}
		values := transform.Strings(transformed)
		if len(values) > 0 {
			value = values[0]
		} else {
			value = ""
		}
	}
	if value == "" {
		return nil, nil
	}

	if st.corrIdx == nil {
		identities, err := e.identities.List(ctx)
		if err != nil {
			return nil, err
		}
		st.corrIdx = buildCorrelationIndex(identities, mapped.Default.IdmPropertyName, mapped.Default.Extended)
	}
	return st.corrIdx.find(value), nil
}

// updateEntityFromRecord writes mapped resource values onto the local entity
// through the inbound transforms.
func (e *Engine) updateEntityFromRecord(ctx context.Context, st *runState, identity *models.Identity, rec connector.Record) error {
	for _, attr := range st.compiled {
		def := attr.Default
		if def == nil || def.UID || def.IdmPropertyName == "" || def.Confidential || def.PasswordAttribute {
			continue
		}
		raw := rec.First(attr.SchemaAttribute)
		value := any(raw)
		if def.TransformFromResource != "" {
			transformed, err := e.eval.Evaluate(def.TransformFromResource, transform.Context{
				UID:       rec.UID,
				Value:     raw,
				Attribute: attr.SchemaAttribute,
			})
			if err != nil {
				return err
			}
			value = transformed
		}
		values := transform.Strings(value)
		str := ""
		if len(values) > 0 {
			str = values[0]
		}
		if def.Extended {
			identity.SetExtended(def.IdmPropertyName, str)
			continue
		}
		if !identity.SetProperty(def.IdmPropertyName, str) {
			return faults.Configuration("unknown_entity_property", map[string]any{
				"property": def.IdmPropertyName,
			})
		}
	}
	return e.identities.Update(ctx, identity)
}

// link creates the account row when needed and adds an ownership link.
func (e *Engine) link(ctx context.Context, st *runState, identity *models.Identity, account *models.Account, uid string) (*models.Account, error) {
	if account == nil {
		account = &models.Account{
			ID:          uuid.New().String(),
			SystemID:    st.system.ID,
			UID:         uid,
			AccountType: models.AccountTypePersonal,
			CreatedAt:   e.now(),
		}
		if err := e.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		st.seen[account.ID] = true
	}
	link := &models.IdentityAccount{
		ID:         uuid.New().String(),
		IdentityID: identity.ID,
		AccountID:  account.ID,
		Ownership:  true,
		CreatedAt:  e.now(),
	}
	if err := e.accounts.AddLink(ctx, link); err != nil {
		return nil, err
	}
	return account, nil
}

// createEntity builds a local entity from the record, then links it.
func (e *Engine) createEntity(ctx context.Context, st *runState, rec connector.Record) error {
	identity := &models.Identity{
		ID:        uuid.New().String(),
		Username:  rec.UID,
		CreatedAt: e.now(),
	}
	// Mapped values may override the username seeded from the UID.
	for _, attr := range st.compiled {
		def := attr.Default
		if def == nil || def.UID || def.IdmPropertyName == "" {
			continue
		}
		raw := rec.First(attr.SchemaAttribute)
		if raw == "" {
			continue
		}
		if def.Extended {
			identity.SetExtended(def.IdmPropertyName, raw)
		} else {
			identity.SetProperty(def.IdmPropertyName, raw)
		}
	}
	if err := e.identities.Create(ctx, identity); err != nil {
		return err
	}
	_, err := e.link(ctx, st, identity, nil, rec.UID)
	return err
}

// deleteEntity removes the owning identity together with the dead account
// link. The identity's accounts on other systems lose their links first, so
// each one runs the last-ownership-link policy (deprovision or protect)
// before the identity row disappears.
func (e *Engine) deleteEntity(ctx context.Context, account *models.Account, link *models.IdentityAccount) error {
	owned, err := e.accounts.ListByIdentity(ctx, link.IdentityID)
	if err != nil {
		return err
	}
	for i := range owned {
		if owned[i].ID == account.ID {
			continue
		}
		if err := e.linker.UnlinkAccount(ctx, &owned[i]); err != nil {
			return err
		}
	}
	if err := e.identities.Delete(ctx, link.IdentityID); err != nil {
		return err
	}
	// The reconciled account's remote record is already gone; only local
	// state remains to clean up.
	if err := e.accounts.RemoveLinksForAccount(ctx, account.ID); err != nil {
		return err
	}
	return e.accounts.Delete(ctx, account.ID)
}

func (e *Engine) ownershipLink(ctx context.Context, account *models.Account) (*models.IdentityAccount, error) {
	links, err := e.accounts.LinksForAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for i := range links {
		if links[i].Ownership {
			return &links[i], nil
		}
	}
	return nil, nil
}

// logResult files one outcome, converting a non-nil error to an ERROR item.
func (e *Engine) logResult(ctx context.Context, st *runState, action, identification, okMessage string, err error) {
	if err != nil {
		e.logOutcome(ctx, st, action, identification, err.Error(), models.ResultError)
		return
	}
	e.logOutcome(ctx, st, action, identification, okMessage, models.ResultOK)
}

func (e *Engine) logOutcome(ctx context.Context, st *runState, action, identification, message string, result models.ItemResult) {
	if result == models.ResultError {
		st.containsError = true
		log.Printf("[sync] run %s %s %s: %s", st.run.ID, action, identification, message)
	}
	item := &models.SyncItemLog{
		ID:             uuid.New().String(),
		Identification: identification,
		Message:        message,
		Result:         result,
		CreatedAt:      e.now(),
	}
	if err := e.logs.LogItem(ctx, st.run.ID, action, item); err != nil {
		log.Printf("[sync] failed to log item %s/%s: %v", action, identification, err)
	}
}
