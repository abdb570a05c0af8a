package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piougy/CzechIdMng-sub011/internal/broker"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

type fakeTrustedServiceStore struct {
	services map[string]*models.TrustedService
}

func (f *fakeTrustedServiceStore) FindByAPIKey(_ context.Context, apiKey string) (*models.TrustedService, error) {
	return f.services[apiKey], nil
}

func newConsumerFixture() (*ConsumerService, *provisioningFixture) {
	fx := newProvisioningFixture()
	auth := NewAuthService(&fakeTrustedServiceStore{services: map[string]*models.TrustedService{
		"test-key": {ID: "svc-1", APIKey: "test-key", Name: "test", AllowedActions: []string{"*"}, IsActive: true},
	}})
	svc := NewConsumerService(auth, fx.svc, fx.identities, fx.accounts, nil, 0)
	return svc, fx
}

func pushAttributeRequest(identityID string) *broker.RequestMessage {
	return &broker.RequestMessage{
		RequestID: "req-1",
		APIKey:    "test-key",
		Action:    broker.ActionPushAttribute,
		Params: map[string]interface{}{
			"identity_id":      identityID,
			"system_id":        "sys-1",
			"schema_attribute": "mail",
		},
	}
}

func TestHandlePushAttribute(t *testing.T) {
	svc, fx := newConsumerFixture()
	fx.accounts.seed(
		&models.Account{ID: "acc-1", SystemID: "sys-1", UID: "jdoe"},
		&models.IdentityAccount{ID: "l-1", IdentityID: "id-1", AccountID: "acc-1", Ownership: true},
	)
	fx.mem.Seed(connector.Record{UID: "jdoe", Attributes: map[string][]string{"mail": {"stale@example.com"}}})

	resp := svc.handlePushAttribute(pushAttributeRequest("id-1"))
	require.True(t, resp.Success)

	rec, err := fx.mem.ReadObject(context.Background(), "jdoe")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"jdoe@example.com"}, rec.Attributes["mail"])
}

func TestHandlePushAttributeMissingIdentity(t *testing.T) {
	svc, fx := newConsumerFixture()
	// A link whose identity row is gone must yield a clean error, not a
	// crash inside the handler.
	fx.accounts.seed(
		&models.Account{ID: "acc-1", SystemID: "sys-1", UID: "ghost"},
		&models.IdentityAccount{ID: "l-1", IdentityID: "ghost", AccountID: "acc-1", Ownership: true},
	)

	resp := svc.handlePushAttribute(pushAttributeRequest("ghost"))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestHandlePushAttributeNoAccountOnSystem(t *testing.T) {
	svc, _ := newConsumerFixture()

	resp := svc.handlePushAttribute(pushAttributeRequest("id-1"))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestHandleIdentityChangedEventProvisions(t *testing.T) {
	svc, fx := newConsumerFixture()
	fx.accounts.seed(
		&models.Account{ID: "acc-1", SystemID: "sys-1", UID: "jdoe"},
		&models.IdentityAccount{ID: "l-1", IdentityID: "id-1", AccountID: "acc-1", Ownership: true},
	)
	fx.mem.Seed(connector.Record{UID: "jdoe", Attributes: map[string][]string{"mail": {"stale@example.com"}}})

	svc.handleIdentityChangedEvent(broker.EventIdentityChanged, map[string]interface{}{"identity_id": "id-1"})

	rec, err := fx.mem.ReadObject(context.Background(), "jdoe")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"jdoe@example.com"}, rec.Attributes["mail"])
}

func TestHandleIdentityChangedEventWithoutIdentityID(t *testing.T) {
	svc, fx := newConsumerFixture()

	svc.handleIdentityChangedEvent(broker.EventIdentityChanged, map[string]interface{}{})

	assert.Equal(t, 0, fx.mem.Len())
}
