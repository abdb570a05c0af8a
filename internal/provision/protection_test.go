package provision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestOnLastLinkRemovedWithoutProtectionDeletes(t *testing.T) {
	acc := &models.Account{ID: "acc-1"}
	outcome := OnLastLinkRemoved(acc, ProtectionPolicy{Enabled: false}, testNow)

	assert.Equal(t, OutcomeDelete, outcome)
	assert.False(t, acc.InProtection)
}

func TestOnLastLinkRemovedProtectsWithInterval(t *testing.T) {
	interval := 10
	acc := &models.Account{ID: "acc-1"}
	outcome := OnLastLinkRemoved(acc, ProtectionPolicy{Enabled: true, IntervalDays: &interval}, testNow)

	assert.Equal(t, OutcomeProtect, outcome)
	assert.True(t, acc.InProtection)
	require.NotNil(t, acc.EndOfProtection)
	assert.Equal(t, testNow.AddDate(0, 0, 10), *acc.EndOfProtection)
}

func TestOnLastLinkRemovedNilIntervalProtectsIndefinitely(t *testing.T) {
	acc := &models.Account{ID: "acc-1"}
	outcome := OnLastLinkRemoved(acc, ProtectionPolicy{Enabled: true}, testNow)

	assert.Equal(t, OutcomeProtect, outcome)
	assert.True(t, acc.InProtection)
	assert.Nil(t, acc.EndOfProtection)
}

func TestRestoreWithinGracePeriod(t *testing.T) {
	end := testNow.AddDate(0, 0, 3)
	acc := &models.Account{ID: "acc-1", InProtection: true, EndOfProtection: &end}

	require.NoError(t, Restore(acc, testNow))
	assert.False(t, acc.InProtection)
	assert.Nil(t, acc.EndOfProtection)
}

func TestRestoreIndefiniteProtection(t *testing.T) {
	acc := &models.Account{ID: "acc-1", InProtection: true}
	require.NoError(t, Restore(acc, testNow))
	assert.False(t, acc.InProtection)
}

func TestRestoreExpiredProtectionFails(t *testing.T) {
	end := testNow.AddDate(0, 0, -1)
	acc := &models.Account{ID: "acc-1", InProtection: true, EndOfProtection: &end}

	err := Restore(acc, testNow)
	require.Error(t, err)
	assert.True(t, faults.IsIntegrity(err))
	assert.Equal(t, "protection_expired", faults.CodeOf(err))
	assert.True(t, acc.InProtection)
}

func TestRestoreUnprotectedAccountIsNoop(t *testing.T) {
	acc := &models.Account{ID: "acc-1"}
	require.NoError(t, Restore(acc, testNow))
}

func TestCheckDeleteRejectsProtectedAccount(t *testing.T) {
	end := testNow.AddDate(0, 0, 5)
	acc := &models.Account{ID: "acc-1", UID: "jdoe", InProtection: true, EndOfProtection: &end}

	err := CheckDelete(acc, testNow)
	require.Error(t, err)
	assert.True(t, faults.IsIntegrity(err))
	assert.Equal(t, "account_protected", faults.CodeOf(err))

	// Indefinite protection blocks deletes too.
	acc.EndOfProtection = nil
	err = CheckDelete(acc, testNow)
	require.Error(t, err)
}

func TestCheckDeleteAllowsExpiredProtection(t *testing.T) {
	end := testNow.AddDate(0, 0, -1)
	acc := &models.Account{ID: "acc-1", InProtection: true, EndOfProtection: &end}
	assert.NoError(t, CheckDelete(acc, testNow))

	assert.NoError(t, CheckDelete(&models.Account{ID: "acc-2"}, testNow))
}

func TestSuppressed(t *testing.T) {
	assert.False(t, Suppressed(nil))
	assert.False(t, Suppressed(&models.Account{}))
	assert.True(t, Suppressed(&models.Account{InProtection: true}))
}
