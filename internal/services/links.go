package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/provision"
)

// Links applies identity-account link lifecycle semantics. Removing the last
// ownership link hands the account to the protection state machine; creating
// one restores a protected account without touching the remote record.
type Links struct {
	mappings MappingStore
	accounts AccountStore
	builder  *provision.Builder
	executor *provision.Executor
	now      func() time.Time
}

// NewLinks wires a link service.
func NewLinks(mappings MappingStore, accounts AccountStore, builder *provision.Builder, executor *provision.Executor) *Links {
	return &Links{
		mappings: mappings,
		accounts: accounts,
		builder:  builder,
		executor: executor,
		now:      time.Now,
	}
}

// AddLink links an identity to an account. A protected account whose grace
// period has not passed returns to ACTIVE; the remote record is untouched.
func (s *Links) AddLink(ctx context.Context, identityID string, account *models.Account, ownership bool) (*models.IdentityAccount, error) {
	if account.InProtection && ownership {
		if err := provision.Restore(account, s.now()); err != nil {
			return nil, err
		}
		if err := s.accounts.Update(ctx, account); err != nil {
			return nil, err
		}
		log.Printf("[links] account %s restored from protection", account.UID)
	}
	link := &models.IdentityAccount{
		ID:         newID(),
		IdentityID: identityID,
		AccountID:  account.ID,
		Ownership:  ownership,
		CreatedAt:  s.now(),
	}
	if err := s.accounts.AddLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// RemoveLink deletes one link and applies the last-ownership-link policy
// when no ownership link remains.
func (s *Links) RemoveLink(ctx context.Context, account *models.Account, linkID string) error {
	if err := s.accounts.RemoveLink(ctx, linkID); err != nil {
		return err
	}
	return s.afterOwnershipChange(ctx, account)
}

// UnlinkAccount removes every link of the account and applies the
// last-ownership-link policy. Used by the sync engine's UNLINK action.
func (s *Links) UnlinkAccount(ctx context.Context, account *models.Account) error {
	if err := s.accounts.RemoveLinksForAccount(ctx, account.ID); err != nil {
		return err
	}
	return s.afterOwnershipChange(ctx, account)
}

// DeleteAccount is an explicit delete request. A still-protected account is
// rejected atomically; nothing is mutated.
func (s *Links) DeleteAccount(ctx context.Context, account *models.Account) error {
	if err := provision.CheckDelete(account, s.now()); err != nil {
		return err
	}
	return s.deleteEverywhere(ctx, account)
}

// ExpireProtection deletes a protected account whose grace period has
// passed. Called by the periodic protection sweep.
func (s *Links) ExpireProtection(ctx context.Context, account *models.Account) error {
	if !account.ProtectionExpired(s.now()) {
		return faults.Integrity("account_protected", map[string]any{
			"account": account.ID,
			"uid":     account.UID,
		})
	}
	return s.deleteEverywhere(ctx, account)
}

// afterOwnershipChange runs the ACTIVE-state transition for an account that
// may have lost its last ownership link.
func (s *Links) afterOwnershipChange(ctx context.Context, account *models.Account) error {
	links, err := s.accounts.LinksForAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.Ownership {
			return nil
		}
	}

	mapping, err := s.mappings.ProvisioningMapping(ctx, account.SystemID, models.EntityTypeIdentity)
	if err != nil {
		return err
	}
	policy := provision.ProtectionPolicy{}
	if mapping != nil {
		policy = provision.PolicyFromMapping(mapping)
	}

	switch provision.OnLastLinkRemoved(account, policy, s.now()) {
	case provision.OutcomeProtect:
		log.Printf("[links] account %s entered protection until %v", account.UID, account.EndOfProtection)
		return s.accounts.Update(ctx, account)
	default:
		return s.deleteEverywhere(ctx, account)
	}
}

// deleteEverywhere removes the remote record, then the local account and any
// remaining links.
func (s *Links) deleteEverywhere(ctx context.Context, account *models.Account) error {
	system, err := s.mappings.System(ctx, account.SystemID)
	if err != nil {
		return err
	}
	if system == nil {
		return faults.Configuration("system_not_found", map[string]any{"system": account.SystemID})
	}
	if system.CanProvision() {
		inst := s.builder.BuildDelete(system.ID, account.UID)
		if err := s.executor.Execute(ctx, system, inst); err != nil {
			return err
		}
	}
	if err := s.accounts.RemoveLinksForAccount(ctx, account.ID); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, account.ID)
}

func newID() string { return uuid.New().String() }
