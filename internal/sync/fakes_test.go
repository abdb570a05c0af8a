package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// In-memory stores backing engine tests.

type fakeConfigStore struct {
	mu      sync.Mutex
	configs map[string]*models.SyncConfig
}

func newFakeConfigStore(cfgs ...*models.SyncConfig) *fakeConfigStore {
	s := &fakeConfigStore{configs: map[string]*models.SyncConfig{}}
	for _, cfg := range cfgs {
		s.configs[cfg.ID] = cfg
	}
	return s
}

func (s *fakeConfigStore) Get(ctx context.Context, id string) (*models.SyncConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return nil, nil
	}
	clone := *cfg
	return &clone, nil
}

func (s *fakeConfigStore) AcquireRun(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok || cfg.Running {
		return false, nil
	}
	cfg.Running = true
	return true, nil
}

func (s *fakeConfigStore) ReleaseRun(ctx context.Context, id string, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[id]; ok {
		cfg.Running = false
		cfg.Token = token
	}
	return nil
}

func (s *fakeConfigStore) ResetRunning(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cfg := range s.configs {
		if cfg.Running {
			cfg.Running = false
			n++
		}
	}
	return n, nil
}

type fakeMappingStore struct {
	systems  map[string]*models.System
	mappings map[string]*models.SystemMapping
	defaults map[string][]models.AttributeMapping
}

func (s *fakeMappingStore) SystemMapping(ctx context.Context, id string) (*models.SystemMapping, error) {
	return s.mappings[id], nil
}

func (s *fakeMappingStore) System(ctx context.Context, id string) (*models.System, error) {
	return s.systems[id], nil
}

func (s *fakeMappingStore) Defaults(ctx context.Context, systemMappingID string) ([]models.AttributeMapping, error) {
	return s.defaults[systemMappingID], nil
}

type fakeIdentityStore struct {
	mu         sync.Mutex
	identities map[string]*models.Identity
	failCreate map[string]error
}

func newFakeIdentityStore(identities ...*models.Identity) *fakeIdentityStore {
	s := &fakeIdentityStore{identities: map[string]*models.Identity{}, failCreate: map[string]error{}}
	for _, identity := range identities {
		s.identities[identity.ID] = identity
	}
	return s
}

func (s *fakeIdentityStore) Get(ctx context.Context, id string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities[id], nil
}

func (s *fakeIdentityStore) List(ctx context.Context) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, *identity)
	}
	return out, nil
}

func (s *fakeIdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate[identity.Username]; err != nil {
		return err
	}
	s.identities[identity.ID] = identity
	return nil
}

func (s *fakeIdentityStore) Update(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; !ok {
		return fmt.Errorf("identity %s not found", identity.ID)
	}
	s.identities[identity.ID] = identity
	return nil
}

func (s *fakeIdentityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, id)
	return nil
}

func (s *fakeIdentityStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	links    map[string][]models.IdentityAccount
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: map[string]*models.Account{},
		links:    map[string][]models.IdentityAccount{},
	}
}

func (s *fakeAccountStore) seed(acc *models.Account, links ...models.IdentityAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
	s.links[acc.ID] = append(s.links[acc.ID], links...)
}

func (s *fakeAccountStore) FindByUID(ctx context.Context, systemID, uid string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.SystemID == systemID && acc.UID == uid {
			return acc, nil
		}
	}
	return nil, nil
}

func (s *fakeAccountStore) ListBySystem(ctx context.Context, systemID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, acc := range s.accounts {
		if acc.SystemID == systemID {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) ListByIdentity(ctx context.Context, identityID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for accountID, links := range s.links {
		for _, link := range links {
			if link.IdentityID != identityID {
				continue
			}
			if acc, ok := s.accounts[accountID]; ok {
				out = append(out, *acc)
			}
			break
		}
	}
	return out, nil
}

func (s *fakeAccountStore) Create(ctx context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
	return nil
}

func (s *fakeAccountStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	delete(s.links, id)
	return nil
}

func (s *fakeAccountStore) LinksForAccount(ctx context.Context, accountID string) ([]models.IdentityAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IdentityAccount(nil), s.links[accountID]...), nil
}

func (s *fakeAccountStore) AddLink(ctx context.Context, link *models.IdentityAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.AccountID] = append(s.links[link.AccountID], *link)
	return nil
}

func (s *fakeAccountStore) RemoveLinksForAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, accountID)
	return nil
}

func (s *fakeAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// fakeRunLog records items per action bucket.
type fakeRunLog struct {
	mu       sync.Mutex
	created  []*models.SyncLog
	finished []*models.SyncLog
	items    map[string][]models.SyncItemLog
}

func newFakeRunLog() *fakeRunLog {
	return &fakeRunLog{items: map[string][]models.SyncItemLog{}}
}

func (l *fakeRunLog) CreateRun(ctx context.Context, run *models.SyncLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *run
	l.created = append(l.created, &clone)
	return nil
}

func (l *fakeRunLog) FinishRun(ctx context.Context, run *models.SyncLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *run
	l.finished = append(l.finished, &clone)
	return nil
}

func (l *fakeRunLog) LogItem(ctx context.Context, syncLogID, action string, item *models.SyncItemLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[action] = append(l.items[action], *item)
	return nil
}

func (l *fakeRunLog) itemsFor(action string) []models.SyncItemLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.SyncItemLog(nil), l.items[action]...)
}

type provisionCall struct {
	identityID string
	accountID  string
	isCreate   bool
}

type fakeProvisioner struct {
	mu    sync.Mutex
	calls []provisionCall
	err   error
}

func (p *fakeProvisioner) ProvisionAccount(ctx context.Context, identity *models.Identity, account *models.Account, isCreate bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, provisionCall{identityID: identity.ID, accountID: account.ID, isCreate: isCreate})
	return p.err
}

type fakeLinker struct {
	mu       sync.Mutex
	unlinked []string
}

func (l *fakeLinker) UnlinkAccount(ctx context.Context, account *models.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlinked = append(l.unlinked, account.ID)
	return nil
}
