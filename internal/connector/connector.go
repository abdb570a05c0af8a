// Package connector defines the contract the provisioning and
// synchronization engines expect from a target-system connector, plus the
// built-in implementations.
package connector

import "context"

// Record is one remote object: the system's unique identifier plus its
// attributes. Attributes are multi-valued.
type Record struct {
	UID        string
	Attributes map[string][]string
}

// First returns the first value of an attribute, "" when absent.
func (r Record) First(attr string) string {
	vals := r.Attributes[attr]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	attrs := make(map[string][]string, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = append([]string(nil), v...)
	}
	return Record{UID: r.UID, Attributes: attrs}
}

// Capabilities are the features a connector declares for its target system.
type Capabilities struct {
	CanChangePassword bool
	CanAuthenticate   bool
}

// Connector performs remote reads, writes and enumeration against one target
// system. Enumerate streams records through the callback so large systems are
// never materialized in memory; returning an error from the callback stops
// the enumeration.
type Connector interface {
	Enumerate(ctx context.Context, filter *Filter, fn func(Record) error) error
	ReadObject(ctx context.Context, uid string) (*Record, error)
	CreateObject(ctx context.Context, rec Record) error
	UpdateObject(ctx context.Context, uid string, newUID string, attrs map[string][]string) error
	DeleteObject(ctx context.Context, uid string) error
	Authenticate(ctx context.Context, uid, secret string) error
	Test(ctx context.Context) error
	Capabilities() Capabilities
}

// Registry resolves a connector for a system by its connector key.
type Registry interface {
	Get(connectorKey string) (Connector, bool)
}

// MapRegistry is a static connector registry.
type MapRegistry map[string]Connector

func (m MapRegistry) Get(connectorKey string) (Connector, bool) {
	c, ok := m[connectorKey]
	return c, ok
}
