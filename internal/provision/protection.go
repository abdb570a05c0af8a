package provision

import (
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// ProtectionPolicy is the protection configuration of a system mapping. A
// nil interval protects indefinitely.
type ProtectionPolicy struct {
	Enabled      bool
	IntervalDays *int
}

// PolicyFromMapping reads the protection policy off a system mapping.
func PolicyFromMapping(m *models.SystemMapping) ProtectionPolicy {
	return ProtectionPolicy{
		Enabled:      m.ProtectionEnabled,
		IntervalDays: m.ProtectionInterval,
	}
}

// LinkRemovalOutcome is the decision taken when an account loses its last
// ownership link.
type LinkRemovalOutcome int

const (
	// OutcomeDelete removes the account locally and remotely.
	OutcomeDelete LinkRemovalOutcome = iota
	// OutcomeProtect keeps the account in the protection grace period.
	OutcomeProtect
)

// OnLastLinkRemoved decides the ACTIVE transition for an account whose last
// ownership link was removed. When the policy protects, the account is
// mutated into the PROTECTED state with endOfProtection = now + interval (nil
// interval protects indefinitely).
func OnLastLinkRemoved(acc *models.Account, policy ProtectionPolicy, now time.Time) LinkRemovalOutcome {
	if !policy.Enabled {
		return OutcomeDelete
	}
	acc.InProtection = true
	acc.EndOfProtection = nil
	if policy.IntervalDays != nil {
		end := now.AddDate(0, 0, *policy.IntervalDays)
		acc.EndOfProtection = &end
	}
	return OutcomeProtect
}

// Restore moves a protected account back to ACTIVE when a new ownership link
// is created before the grace period expired. The remote record is left
// untouched. Restoring an account past its grace period is rejected.
func Restore(acc *models.Account, now time.Time) error {
	if !acc.InProtection {
		return nil
	}
	if acc.ProtectionExpired(now) {
		return faults.Integrity("protection_expired", map[string]any{
			"account": acc.ID,
		})
	}
	acc.InProtection = false
	acc.EndOfProtection = nil
	return nil
}

// CheckDelete rejects an explicit delete of a still-protected account. Only
// an account whose grace period is non-null and has passed may be deleted.
func CheckDelete(acc *models.Account, now time.Time) error {
	if acc.InProtection && !acc.ProtectionExpired(now) {
		return faults.Integrity("account_protected", map[string]any{
			"account": acc.ID,
			"uid":     acc.UID,
		})
	}
	return nil
}

// Suppressed reports whether attribute-change provisioning must be skipped
// for the account. While PROTECTED no remote writes happen, even though the
// account still exists locally and on the target system.
func Suppressed(acc *models.Account) bool {
	return acc != nil && acc.InProtection
}
