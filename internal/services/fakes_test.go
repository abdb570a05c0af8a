package services

import (
	"context"
	"sync"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// fakeMappingStore serves a single system with one provisioning mapping.
type fakeMappingStore struct {
	system    *models.System
	mapping   *models.SystemMapping
	defaults  []models.AttributeMapping
	overloads []models.RoleAttributeMapping
}

func (f *fakeMappingStore) System(_ context.Context, id string) (*models.System, error) {
	if f.system != nil && f.system.ID == id {
		return f.system, nil
	}
	return nil, nil
}

func (f *fakeMappingStore) ProvisioningMapping(_ context.Context, systemID string, _ models.EntityType) (*models.SystemMapping, error) {
	if f.mapping != nil && f.mapping.SystemID == systemID {
		return f.mapping, nil
	}
	return nil, nil
}

func (f *fakeMappingStore) Defaults(_ context.Context, _ string) ([]models.AttributeMapping, error) {
	return f.defaults, nil
}

func (f *fakeMappingStore) OverloadsForIdentity(_ context.Context, _, _ string) ([]models.RoleAttributeMapping, error) {
	return f.overloads, nil
}

// fakeAccountStore keeps accounts and links in memory.
type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	links    map[string]*models.IdentityAccount
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: map[string]*models.Account{},
		links:    map[string]*models.IdentityAccount{},
	}
}

func (f *fakeAccountStore) seed(acc *models.Account, links ...*models.IdentityAccount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[acc.ID] = acc
	for _, link := range links {
		f.links[link.ID] = link
	}
}

func (f *fakeAccountStore) ListByIdentity(_ context.Context, identityID string) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, link := range f.links {
		if link.IdentityID != identityID {
			continue
		}
		if acc, ok := f.accounts[link.AccountID]; ok {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) Update(_ context.Context, acc *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *acc
	f.accounts[acc.ID] = &stored
	return nil
}

func (f *fakeAccountStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeAccountStore) LinksForAccount(_ context.Context, accountID string) ([]models.IdentityAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.IdentityAccount
	for _, link := range f.links {
		if link.AccountID == accountID {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) AddLink(_ context.Context, link *models.IdentityAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *link
	f.links[link.ID] = &stored
	return nil
}

func (f *fakeAccountStore) RemoveLink(_ context.Context, linkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, linkID)
	return nil
}

func (f *fakeAccountStore) RemoveLinksForAccount(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, link := range f.links {
		if link.AccountID == accountID {
			delete(f.links, id)
		}
	}
	return nil
}

func (f *fakeAccountStore) account(id string) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id]
}

func (f *fakeAccountStore) linkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

// fakeIdentityStore serves identities by ID.
type fakeIdentityStore struct {
	identities map[string]*models.Identity
}

func (f *fakeIdentityStore) Get(_ context.Context, id string) (*models.Identity, error) {
	return f.identities[id], nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	eventType string
	data      map[string]any
}

func (p *recordingPublisher) Publish(eventType string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, data: data})
	return nil
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
