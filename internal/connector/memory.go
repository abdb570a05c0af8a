package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
)

// Memory is an in-memory connector holding multi-valued records indexed by
// UID. It backs tests and serves as a loopback target system.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	secrets map[string]string
	caps    Capabilities
}

// NewMemory creates an empty in-memory connector.
func NewMemory() *Memory {
	return &Memory{
		records: map[string]Record{},
		secrets: map[string]string{},
		caps:    Capabilities{CanChangePassword: true, CanAuthenticate: true},
	}
}

// SetCapabilities overrides the declared capabilities.
func (m *Memory) SetCapabilities(caps Capabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps = caps
}

// Seed inserts or replaces a record without going through CreateObject.
func (m *Memory) Seed(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UID] = rec.Clone()
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Enumerate(ctx context.Context, filter *Filter, fn func(Record) error) error {
	m.mu.RLock()
	uids := make([]string, 0, len(m.records))
	for uid := range m.records {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	snapshot := make([]Record, 0, len(uids))
	for _, uid := range uids {
		snapshot = append(snapshot, m.records[uid].Clone())
	}
	m.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return faults.ConnectorWrap("enumeration_interrupted", nil, err)
		}
		if !filter.Match(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ReadObject(ctx context.Context, uid string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[uid]
	if !ok {
		return nil, nil
	}
	clone := rec.Clone()
	return &clone, nil
}

func (m *Memory) CreateObject(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.UID]; exists {
		return faults.Connector("object_exists", map[string]any{"uid": rec.UID})
	}
	m.records[rec.UID] = rec.Clone()
	return nil
}

// UpdateObject merges attrs into an existing record. A non-empty newUID
// renames the record in place, reindexing it under the new identifier.
func (m *Memory) UpdateObject(ctx context.Context, uid string, newUID string, attrs map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[uid]
	if !ok {
		return faults.Connector("object_not_found", map[string]any{"uid": uid})
	}
	updated := rec.Clone()
	for k, v := range attrs {
		updated.Attributes[k] = append([]string(nil), v...)
	}
	if newUID != "" && newUID != uid {
		if _, exists := m.records[newUID]; exists {
			return faults.Connector("object_exists", map[string]any{"uid": newUID})
		}
		delete(m.records, uid)
		updated.UID = newUID
		if secret, ok := m.secrets[uid]; ok {
			delete(m.secrets, uid)
			m.secrets[newUID] = secret
		}
		uid = newUID
	}
	m.records[uid] = updated
	return nil
}

func (m *Memory) DeleteObject(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[uid]; !ok {
		return faults.Connector("object_not_found", map[string]any{"uid": uid})
	}
	delete(m.records, uid)
	delete(m.secrets, uid)
	return nil
}

// SetSecret stores a credential for Authenticate.
func (m *Memory) SetSecret(uid, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[uid] = secret
}

func (m *Memory) Authenticate(ctx context.Context, uid, secret string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.secrets[uid]
	if !ok || stored != secret {
		return faults.Connector("authentication_failed", map[string]any{"uid": uid})
	}
	return nil
}

func (m *Memory) Test(ctx context.Context) error { return nil }

func (m *Memory) Capabilities() Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caps
}
