package models

import "time"

// AccountType distinguishes personal accounts from technical ones.
type AccountType string

const (
	AccountTypePersonal  AccountType = "PERSONAL"
	AccountTypeTechnical AccountType = "TECHNICAL"
)

// Account is a provisioned record on a target system, identified by the
// system's external UID. An account whose last ownership link was removed may
// enter a protection grace period before it becomes eligible for deletion.
type Account struct {
	ID          string
	SystemID    string
	UID         string
	AccountType AccountType

	InProtection    bool
	EndOfProtection *time.Time

	CreatedAt time.Time
}

// ProtectionExpired reports whether the protection grace period has passed.
// Indefinite protection (nil end) never expires.
func (a *Account) ProtectionExpired(now time.Time) bool {
	if !a.InProtection {
		return false
	}
	if a.EndOfProtection == nil {
		return false
	}
	return now.After(*a.EndOfProtection)
}

// IdentityAccount links an identity to an account. Ownership links govern the
// account lifecycle: an account with zero ownership links is eligible for
// protection or deletion.
type IdentityAccount struct {
	ID           string
	IdentityID   string
	AccountID    string
	RoleSystemID string
	Ownership    bool
	CreatedAt    time.Time
}
