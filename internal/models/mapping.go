package models

import "time"

// EntityType identifies which local entity kind a system mapping covers.
type EntityType string

const (
	EntityTypeIdentity      EntityType = "IDENTITY"
	EntityTypeRole          EntityType = "ROLE"
	EntityTypeTree          EntityType = "TREE"
	EntityTypeContract      EntityType = "CONTRACT"
	EntityTypeRoleCatalogue EntityType = "ROLE_CATALOGUE"
)

// OperationType distinguishes provisioning mappings from synchronization
// mappings.
type OperationType string

const (
	OperationProvisioning    OperationType = "PROVISIONING"
	OperationSynchronization OperationType = "SYNCHRONIZATION"
)

// StrategyType controls how an attribute value is written to the target
// system.
type StrategyType string

const (
	StrategySet                StrategyType = "SET"
	StrategyCreate             StrategyType = "CREATE"
	StrategyWriteIfNull        StrategyType = "WRITE_IF_NULL"
	StrategyMerge              StrategyType = "MERGE"
	StrategyAuthoritativeMerge StrategyType = "AUTHORITATIVE_MERGE"
)

// IsMerge reports whether the strategy unions values from multiple
// contributing mappings.
func (s StrategyType) IsMerge() bool {
	return s == StrategyMerge || s == StrategyAuthoritativeMerge
}

// SystemMapping binds a System to an entity type and operation type and owns
// an ordered set of attribute mappings. At most one mapping may exist per
// (system, entityType, operationType, treeType).
type SystemMapping struct {
	ID            string
	SystemID      string
	Name          string
	EntityType    EntityType
	OperationType OperationType
	TreeType      string

	// Account protection settings for accounts whose last ownership link
	// is removed. A nil interval protects indefinitely.
	ProtectionEnabled  bool
	ProtectionInterval *int

	CreatedAt time.Time
}

// AttributeMapping is a default mapping of one remote schema attribute within
// a system mapping.
type AttributeMapping struct {
	ID              string
	SystemMappingID string

	// SchemaAttribute names the remote attribute; Multivalued mirrors the
	// remote schema declaration.
	SchemaAttribute string
	Multivalued     bool

	// IdmPropertyName names the local entity property feeding the value.
	// Extended marks properties living in the extended attribute store
	// instead of a plain entity field.
	IdmPropertyName string
	Extended        bool

	Strategy          StrategyType
	UID               bool
	EntityAttribute   bool
	PasswordAttribute bool
	Confidential      bool
	DisabledAttribute bool
	SendOnlyIfNotNull bool

	TransformToResource   string
	TransformFromResource string

	CreatedAt time.Time
}

// RoleSystem is a role assigned against a system mapping. Its overloading
// attribute mappings inherit the role's numeric priority.
type RoleSystem struct {
	ID              string
	RoleName        string
	RolePriority    int
	SystemMappingID string
	CreatedAt       time.Time
}

// RoleAttributeMapping overloads a default attribute mapping (or contributes
// a standalone attribute) on behalf of a role.
type RoleAttributeMapping struct {
	ID           string
	RoleSystemID string
	RoleName     string
	RolePriority int

	// AttributeMappingID references the overloaded default; empty for a
	// standalone attribute, in which case SchemaAttribute/Multivalued
	// describe the remote attribute directly.
	AttributeMappingID string
	SchemaAttribute    string
	Multivalued        bool

	Strategy                 StrategyType
	DisabledDefaultAttribute bool
	TransformToResource      string

	CreatedAt time.Time
}
