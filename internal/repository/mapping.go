package repository

import (
	"context"
	"database/sql"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// MappingRepository is the mapping store: systems, system mappings, default
// attribute mappings and role-contributed overloads.
type MappingRepository struct {
	db *sql.DB
}

func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) System(ctx context.Context, id string) (*models.System, error) {
	query := `
		SELECT id, name, connector_key, readonly, disabled, supports_password_change, created_at
		FROM systems
		WHERE id = $1
	`
	s := &models.System{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.ConnectorKey,
		&s.Readonly,
		&s.Disabled,
		&s.SupportsPasswordChange,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *MappingRepository) CreateSystem(ctx context.Context, s *models.System) error {
	query := `
		INSERT INTO systems (name, connector_key, readonly, disabled, supports_password_change)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		s.Name,
		s.ConnectorKey,
		s.Readonly,
		s.Disabled,
		s.SupportsPasswordChange,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *MappingRepository) SystemMapping(ctx context.Context, id string) (*models.SystemMapping, error) {
	query := systemMappingSelect + ` WHERE id = $1`
	return r.scanSystemMapping(r.db.QueryRowContext(ctx, query, id))
}

// ProvisioningMapping returns the PROVISIONING mapping for the system and
// entity type, nil when none is configured.
func (r *MappingRepository) ProvisioningMapping(ctx context.Context, systemID string, entityType models.EntityType) (*models.SystemMapping, error) {
	query := systemMappingSelect + `
		WHERE system_id = $1 AND entity_type = $2 AND operation_type = $3
	`
	return r.scanSystemMapping(r.db.QueryRowContext(ctx, query, systemID, entityType, models.OperationProvisioning))
}

const systemMappingSelect = `
	SELECT id, system_id, name, entity_type, operation_type, tree_type,
	       protection_enabled, protection_interval, created_at
	FROM system_mappings
`

func (r *MappingRepository) scanSystemMapping(row *sql.Row) (*models.SystemMapping, error) {
	m := &models.SystemMapping{}
	var interval sql.NullInt64
	err := row.Scan(
		&m.ID,
		&m.SystemID,
		&m.Name,
		&m.EntityType,
		&m.OperationType,
		&m.TreeType,
		&m.ProtectionEnabled,
		&interval,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if interval.Valid {
		v := int(interval.Int64)
		m.ProtectionInterval = &v
	}
	return m, nil
}

func (r *MappingRepository) CreateSystemMapping(ctx context.Context, m *models.SystemMapping) error {
	query := `
		INSERT INTO system_mappings (system_id, name, entity_type, operation_type, tree_type,
		                             protection_enabled, protection_interval)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	var interval sql.NullInt64
	if m.ProtectionInterval != nil {
		interval = sql.NullInt64{Int64: int64(*m.ProtectionInterval), Valid: true}
	}
	return r.db.QueryRowContext(ctx, query,
		m.SystemID,
		m.Name,
		m.EntityType,
		m.OperationType,
		m.TreeType,
		m.ProtectionEnabled,
		interval,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *MappingRepository) Defaults(ctx context.Context, systemMappingID string) ([]models.AttributeMapping, error) {
	query := `
		SELECT id, system_mapping_id, schema_attribute, multivalued, idm_property_name, extended,
		       strategy, uid, entity_attribute, password_attribute, confidential,
		       disabled_attribute, send_only_if_not_null,
		       transform_to_resource, transform_from_resource, created_at
		FROM attribute_mappings
		WHERE system_mapping_id = $1
		ORDER BY schema_attribute
	`
	rows, err := r.db.QueryContext(ctx, query, systemMappingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.AttributeMapping
	for rows.Next() {
		var m models.AttributeMapping
		err := rows.Scan(
			&m.ID,
			&m.SystemMappingID,
			&m.SchemaAttribute,
			&m.Multivalued,
			&m.IdmPropertyName,
			&m.Extended,
			&m.Strategy,
			&m.UID,
			&m.EntityAttribute,
			&m.PasswordAttribute,
			&m.Confidential,
			&m.DisabledAttribute,
			&m.SendOnlyIfNotNull,
			&m.TransformToResource,
			&m.TransformFromResource,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (r *MappingRepository) UpsertAttributeMapping(ctx context.Context, m *models.AttributeMapping) (*models.AttributeMapping, error) {
	query := `
		INSERT INTO attribute_mappings (system_mapping_id, schema_attribute, multivalued,
			idm_property_name, extended, strategy, uid, entity_attribute, password_attribute,
			confidential, disabled_attribute, send_only_if_not_null,
			transform_to_resource, transform_from_resource)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (system_mapping_id, schema_attribute)
		DO UPDATE SET
			multivalued = EXCLUDED.multivalued,
			idm_property_name = EXCLUDED.idm_property_name,
			extended = EXCLUDED.extended,
			strategy = EXCLUDED.strategy,
			uid = EXCLUDED.uid,
			entity_attribute = EXCLUDED.entity_attribute,
			password_attribute = EXCLUDED.password_attribute,
			confidential = EXCLUDED.confidential,
			disabled_attribute = EXCLUDED.disabled_attribute,
			send_only_if_not_null = EXCLUDED.send_only_if_not_null,
			transform_to_resource = EXCLUDED.transform_to_resource,
			transform_from_resource = EXCLUDED.transform_from_resource
		RETURNING id, created_at
	`
	out := *m
	err := r.db.QueryRowContext(ctx, query,
		m.SystemMappingID,
		m.SchemaAttribute,
		m.Multivalued,
		m.IdmPropertyName,
		m.Extended,
		m.Strategy,
		m.UID,
		m.EntityAttribute,
		m.PasswordAttribute,
		m.Confidential,
		m.DisabledAttribute,
		m.SendOnlyIfNotNull,
		m.TransformToResource,
		m.TransformFromResource,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *MappingRepository) DeleteAttributeMapping(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attribute_mappings WHERE id = $1`, id)
	return err
}

// OverloadsForIdentity returns the overloading mappings of every role-system
// the identity holds against the system mapping, with role name and priority
// denormalized for the compiler.
func (r *MappingRepository) OverloadsForIdentity(ctx context.Context, systemMappingID, identityID string) ([]models.RoleAttributeMapping, error) {
	query := `
		SELECT ram.id, ram.role_system_id, rs.role_name, rs.role_priority,
		       COALESCE(ram.attribute_mapping_id::text, ''), ram.schema_attribute, ram.multivalued,
		       ram.strategy, ram.disabled_default_attribute, ram.transform_to_resource, ram.created_at
		FROM role_attribute_mappings ram
		JOIN role_systems rs ON rs.id = ram.role_system_id
		JOIN identity_roles ir ON ir.role_system_id = rs.id
		WHERE rs.system_mapping_id = $1 AND ir.identity_id = $2
	`
	rows, err := r.db.QueryContext(ctx, query, systemMappingID, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overloads []models.RoleAttributeMapping
	for rows.Next() {
		var m models.RoleAttributeMapping
		err := rows.Scan(
			&m.ID,
			&m.RoleSystemID,
			&m.RoleName,
			&m.RolePriority,
			&m.AttributeMappingID,
			&m.SchemaAttribute,
			&m.Multivalued,
			&m.Strategy,
			&m.DisabledDefaultAttribute,
			&m.TransformToResource,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		overloads = append(overloads, m)
	}
	return overloads, rows.Err()
}
