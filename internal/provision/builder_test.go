package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piougy/CzechIdMng-sub011/internal/compiler"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/transform"
)

func testIdentity() *models.Identity {
	return &models.Identity{
		ID:        "id-1",
		Username:  "jdoe",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "jdoe@example.com",
		Extended:  map[string]string{"department": "IT"},
	}
}

func compile(t *testing.T, defaults []models.AttributeMapping, overloads []models.RoleAttributeMapping) []compiler.EffectiveAttribute {
	t.Helper()
	effective, err := compiler.Compile(defaults, overloads)
	require.NoError(t, err)
	return effective
}

func uidDefault() models.AttributeMapping {
	return models.AttributeMapping{
		ID:              "map-uid",
		SchemaAttribute: "__NAME__",
		IdmPropertyName: "username",
		EntityAttribute: true,
		UID:             true,
	}
}

func TestBuildCreateResolvesUIDAndValues(t *testing.T) {
	defaults := []models.AttributeMapping{
		uidDefault(),
		{
			ID:              "map-mail",
			SchemaAttribute: "mail",
			IdmPropertyName: "email",
			EntityAttribute: true,
		},
		{
			ID:              "map-dept",
			SchemaAttribute: "department",
			IdmPropertyName: "department",
			Extended:        true,
		},
	}

	b := NewBuilder(transform.NewRegistry())
	inst, err := b.Build(compile(t, defaults, nil), testIdentity(), "sys-1", nil, true)
	require.NoError(t, err)

	assert.Equal(t, OperationCreate, inst.Kind)
	assert.Equal(t, "jdoe", inst.UID)
	assert.Empty(t, inst.NewUID)
	assert.Equal(t, []string{"jdoe@example.com"}, inst.Attributes["mail"])
	assert.Equal(t, []string{"IT"}, inst.Attributes["department"])
	// The UID attribute is carried by the identifier, not as a value.
	assert.NotContains(t, inst.Attributes, "__NAME__")
}

func TestBuildAppliesOutboundTransform(t *testing.T) {
	mail := models.AttributeMapping{
		ID:                  "map-mail",
		SchemaAttribute:     "mail",
		IdmPropertyName:     "email",
		EntityAttribute:     true,
		TransformToResource: "uppercase",
	}

	b := NewBuilder(transform.NewRegistry())
	inst, err := b.Build(compile(t, []models.AttributeMapping{uidDefault(), mail}, nil), testIdentity(), "sys-1", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"JDOE@EXAMPLE.COM"}, inst.Attributes["mail"])
}

func TestBuildDetectsRename(t *testing.T) {
	b := NewBuilder(transform.NewRegistry())
	current := &connector.Record{UID: "old.name", Attributes: map[string][]string{}}

	inst, err := b.Build(compile(t, []models.AttributeMapping{uidDefault()}, nil), testIdentity(), "sys-1", current, false)
	require.NoError(t, err)

	assert.Equal(t, OperationUpdate, inst.Kind)
	assert.Equal(t, "old.name", inst.UID)
	assert.Equal(t, "jdoe", inst.NewUID)
}

func TestBuildNoRenameWhenUIDUnchanged(t *testing.T) {
	b := NewBuilder(transform.NewRegistry())
	current := &connector.Record{UID: "jdoe", Attributes: map[string][]string{}}

	inst, err := b.Build(compile(t, []models.AttributeMapping{uidDefault()}, nil), testIdentity(), "sys-1", current, false)
	require.NoError(t, err)
	assert.Empty(t, inst.NewUID)
}

func TestBuildUIDValueMissingIsItemError(t *testing.T) {
	b := NewBuilder(transform.NewRegistry())
	identity := testIdentity()
	identity.Username = ""

	_, err := b.Build(compile(t, []models.AttributeMapping{uidDefault()}, nil), identity, "sys-1", nil, true)
	require.Error(t, err)
	assert.True(t, faults.IsItem(err))
	assert.Equal(t, "uid_value_missing", faults.CodeOf(err))
}

func TestBuildCreateStrategySkippedOnUpdate(t *testing.T) {
	initial := models.AttributeMapping{
		ID:              "map-initial",
		SchemaAttribute: "initialPassword",
		IdmPropertyName: "username",
		EntityAttribute: true,
		Strategy:        models.StrategyCreate,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), initial}, nil)
	b := NewBuilder(transform.NewRegistry())

	create, err := b.Build(effective, testIdentity(), "sys-1", nil, true)
	require.NoError(t, err)
	assert.Contains(t, create.Attributes, "initialPassword")

	current := &connector.Record{UID: "jdoe", Attributes: map[string][]string{}}
	update, err := b.Build(effective, testIdentity(), "sys-1", current, false)
	require.NoError(t, err)
	assert.NotContains(t, update.Attributes, "initialPassword")
}

func TestBuildWriteIfNullSkipsWhenRemoteHasValue(t *testing.T) {
	mail := models.AttributeMapping{
		ID:              "map-mail",
		SchemaAttribute: "mail",
		IdmPropertyName: "email",
		EntityAttribute: true,
		Strategy:        models.StrategyWriteIfNull,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), mail}, nil)
	b := NewBuilder(transform.NewRegistry())

	filled := &connector.Record{UID: "jdoe", Attributes: map[string][]string{"mail": {"keep@example.com"}}}
	inst, err := b.Build(effective, testIdentity(), "sys-1", filled, false)
	require.NoError(t, err)
	assert.NotContains(t, inst.Attributes, "mail")

	empty := &connector.Record{UID: "jdoe", Attributes: map[string][]string{}}
	inst, err = b.Build(effective, testIdentity(), "sys-1", empty, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"jdoe@example.com"}, inst.Attributes["mail"])
}

func TestBuildSendOnlyIfNotNullSuppressesEmpty(t *testing.T) {
	mail := models.AttributeMapping{
		ID:                "map-mail",
		SchemaAttribute:   "mail",
		IdmPropertyName:   "email",
		EntityAttribute:   true,
		SendOnlyIfNotNull: true,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), mail}, nil)
	b := NewBuilder(transform.NewRegistry())

	identity := testIdentity()
	identity.Email = ""
	inst, err := b.Build(effective, identity, "sys-1", nil, true)
	require.NoError(t, err)
	assert.NotContains(t, inst.Attributes, "mail")
}

func TestBuildEmptyValueWithoutSuppressionClearsAttribute(t *testing.T) {
	mail := models.AttributeMapping{
		ID:              "map-mail",
		SchemaAttribute: "mail",
		IdmPropertyName: "email",
		EntityAttribute: true,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), mail}, nil)
	b := NewBuilder(transform.NewRegistry())

	identity := testIdentity()
	identity.Email = ""
	inst, err := b.Build(effective, identity, "sys-1", nil, true)
	require.NoError(t, err)

	values, ok := inst.Attributes["mail"]
	require.True(t, ok)
	assert.Empty(t, values)
}

func TestBuildMergeUnionsContributors(t *testing.T) {
	groups := models.AttributeMapping{
		ID:              "map-groups",
		SchemaAttribute: "groups",
		IdmPropertyName: "department",
		Extended:        true,
		Multivalued:     true,
		Strategy:        models.StrategyMerge,
	}
	staff := models.RoleAttributeMapping{
		ID:                 "ov-staff",
		RoleName:           "staff",
		RolePriority:       100,
		AttributeMappingID: "map-groups",
		Strategy:           models.StrategyMerge,
		TransformToResource: "uid",
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), groups}, []models.RoleAttributeMapping{staff})
	b := NewBuilder(transform.NewRegistry())

	inst, err := b.Build(effective, testIdentity(), "sys-1", nil, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"IT", "jdoe"}, inst.Attributes["groups"])
}

func TestBuildMergeDeduplicatesValues(t *testing.T) {
	groups := models.AttributeMapping{
		ID:              "map-groups",
		SchemaAttribute: "groups",
		IdmPropertyName: "department",
		Extended:        true,
		Multivalued:     true,
		Strategy:        models.StrategyMerge,
	}
	duplicate := models.RoleAttributeMapping{
		ID:                 "ov-dup",
		RoleName:           "staff",
		RolePriority:       100,
		AttributeMappingID: "map-groups",
		Strategy:           models.StrategyMerge,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), groups}, []models.RoleAttributeMapping{duplicate})
	b := NewBuilder(transform.NewRegistry())

	inst, err := b.Build(effective, testIdentity(), "sys-1", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"IT"}, inst.Attributes["groups"])
}

func TestBuildMultipleValuesForSingleValuedFails(t *testing.T) {
	reg := transform.NewRegistry()
	reg.Register("explode", func(v any, _ transform.Context) (any, error) {
		return []string{"a", "b"}, nil
	})
	mail := models.AttributeMapping{
		ID:                  "map-mail",
		SchemaAttribute:     "mail",
		IdmPropertyName:     "email",
		EntityAttribute:     true,
		TransformToResource: "explode",
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), mail}, nil)

	_, err := NewBuilder(reg).Build(effective, testIdentity(), "sys-1", nil, true)
	require.Error(t, err)
	assert.Equal(t, "multiple_values_for_single_valued", faults.CodeOf(err))
}

func TestBuildConfidentialStaysOffPlainAttributes(t *testing.T) {
	password := models.AttributeMapping{
		ID:                "map-pw",
		SchemaAttribute:   "userPassword",
		IdmPropertyName:   "secret",
		Extended:          true,
		PasswordAttribute: true,
		Confidential:      true,
	}
	effective := compile(t, []models.AttributeMapping{uidDefault(), password}, nil)
	b := NewBuilder(transform.NewRegistry())

	identity := testIdentity()
	identity.SetExtended("secret", "hunter2")
	inst, err := b.Build(effective, identity, "sys-1", nil, true)
	require.NoError(t, err)

	assert.NotContains(t, inst.Attributes, "userPassword")
	assert.Equal(t, []string{"hunter2"}, inst.Confidential["userPassword"])
	assert.True(t, inst.PasswordChange)

	// Names are log-safe, values are not.
	assert.Contains(t, inst.AttributeNames(), "userPassword")
}

func TestBuildAttributeWritesSingleAttribute(t *testing.T) {
	defaults := []models.AttributeMapping{
		uidDefault(),
		{ID: "map-mail", SchemaAttribute: "mail", IdmPropertyName: "email", EntityAttribute: true},
		{ID: "map-sn", SchemaAttribute: "sn", IdmPropertyName: "lastName", EntityAttribute: true},
	}
	effective := compile(t, defaults, nil)
	b := NewBuilder(transform.NewRegistry())

	current := &connector.Record{UID: "jdoe", Attributes: map[string][]string{}}
	inst, err := b.BuildAttribute(effective, testIdentity(), "sys-1", current, "sn")
	require.NoError(t, err)

	assert.Equal(t, OperationUpdate, inst.Kind)
	assert.Equal(t, []string{"Doe"}, inst.Attributes["sn"])
	assert.NotContains(t, inst.Attributes, "mail")
}

func TestBuildDelete(t *testing.T) {
	inst := NewBuilder(transform.NewRegistry()).BuildDelete("sys-1", "jdoe")
	assert.Equal(t, OperationDelete, inst.Kind)
	assert.Equal(t, "jdoe", inst.UID)
	assert.Equal(t, "sys-1", inst.SystemID)
}
