package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

func TestMemoryEnumerateIsSortedSnapshot(t *testing.T) {
	m := NewMemory()
	m.Seed(Record{UID: "charlie"})
	m.Seed(Record{UID: "alice"})
	m.Seed(Record{UID: "bob"})

	var got []string
	err := m.Enumerate(context.Background(), nil, func(r Record) error {
		got = append(got, r.UID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, got)
}

func TestMemoryEnumerateAppliesFilter(t *testing.T) {
	m := NewMemory()
	m.Seed(Record{UID: "a", Attributes: map[string][]string{"modified": {"2024-01-01"}}})
	m.Seed(Record{UID: "b", Attributes: map[string][]string{"modified": {"2024-06-01"}}})

	filter := &Filter{Attribute: "modified", Operator: models.OperatorGreaterThan, Value: "2024-03-01"}
	var got []string
	err := m.Enumerate(context.Background(), filter, func(r Record) error {
		got = append(got, r.UID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestMemoryCreateRejectsDuplicate(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.CreateObject(context.Background(), Record{UID: "jdoe"}))

	err := m.CreateObject(context.Background(), Record{UID: "jdoe"})
	require.Error(t, err)
	assert.True(t, faults.IsConnector(err))
	assert.Equal(t, "object_exists", faults.CodeOf(err))
}

func TestMemoryReadMissingReturnsNil(t *testing.T) {
	m := NewMemory()
	rec, err := m.ReadObject(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryUpdateRenamesInPlace(t *testing.T) {
	m := NewMemory()
	m.Seed(Record{UID: "jdoe", Attributes: map[string][]string{"mail": {"jdoe@example.com"}}})
	m.SetSecret("jdoe", "s3cret")

	err := m.UpdateObject(context.Background(), "jdoe", "john.doe", map[string][]string{
		"mail": {"john.doe@example.com"},
	})
	require.NoError(t, err)

	old, err := m.ReadObject(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Nil(t, old)

	renamed, err := m.ReadObject(context.Background(), "john.doe")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, []string{"john.doe@example.com"}, renamed.Attributes["mail"])

	// Credentials follow the rename.
	assert.NoError(t, m.Authenticate(context.Background(), "john.doe", "s3cret"))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryUpdateRenameCollisionFails(t *testing.T) {
	m := NewMemory()
	m.Seed(Record{UID: "a"})
	m.Seed(Record{UID: "b"})

	err := m.UpdateObject(context.Background(), "a", "b", nil)
	require.Error(t, err)
	assert.Equal(t, "object_exists", faults.CodeOf(err))
}

func TestMemoryDeleteAndAuthenticate(t *testing.T) {
	m := NewMemory()
	m.Seed(Record{UID: "jdoe"})
	m.SetSecret("jdoe", "pw")

	require.Error(t, m.Authenticate(context.Background(), "jdoe", "wrong"))
	require.NoError(t, m.Authenticate(context.Background(), "jdoe", "pw"))

	require.NoError(t, m.DeleteObject(context.Background(), "jdoe"))
	err := m.DeleteObject(context.Background(), "jdoe")
	require.Error(t, err)
	assert.Equal(t, "object_not_found", faults.CodeOf(err))
}

func TestMemorySeedClonesRecord(t *testing.T) {
	m := NewMemory()
	attrs := map[string][]string{"mail": {"a@example.com"}}
	m.Seed(Record{UID: "a", Attributes: attrs})

	attrs["mail"][0] = "mutated"
	rec, err := m.ReadObject(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, rec.Attributes["mail"])
}
