package models

import "time"

// System is an external target system reachable through a connector.
type System struct {
	ID                    string
	Name                  string
	ConnectorKey          string
	Readonly              bool
	Disabled              bool
	SupportsPasswordChange bool
	CreatedAt             time.Time
}

// CanProvision reports whether provisioning writes may be dispatched to the
// system at all.
func (s *System) CanProvision() bool {
	return !s.Disabled && !s.Readonly
}
