package database

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
)

func New(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	log.Println("[database] Connected to PostgreSQL")
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS systems (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) UNIQUE NOT NULL,
		connector_key VARCHAR(100) NOT NULL,
		readonly BOOLEAN DEFAULT false,
		disabled BOOLEAN DEFAULT false,
		supports_password_change BOOLEAN DEFAULT false,
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS system_mappings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		system_id UUID NOT NULL REFERENCES systems(id),
		name VARCHAR(255) NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		operation_type VARCHAR(50) NOT NULL,
		tree_type VARCHAR(100) NOT NULL DEFAULT '',
		protection_enabled BOOLEAN DEFAULT false,
		protection_interval INT,
		created_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(system_id, entity_type, operation_type, tree_type)
	);

	CREATE TABLE IF NOT EXISTS attribute_mappings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		system_mapping_id UUID NOT NULL REFERENCES system_mappings(id),
		schema_attribute VARCHAR(255) NOT NULL,
		multivalued BOOLEAN DEFAULT false,
		idm_property_name VARCHAR(255) NOT NULL DEFAULT '',
		extended BOOLEAN DEFAULT false,
		strategy VARCHAR(50) NOT NULL DEFAULT 'SET',
		uid BOOLEAN DEFAULT false,
		entity_attribute BOOLEAN DEFAULT false,
		password_attribute BOOLEAN DEFAULT false,
		confidential BOOLEAN DEFAULT false,
		disabled_attribute BOOLEAN DEFAULT false,
		send_only_if_not_null BOOLEAN DEFAULT false,
		transform_to_resource TEXT NOT NULL DEFAULT '',
		transform_from_resource TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(system_mapping_id, schema_attribute)
	);

	CREATE TABLE IF NOT EXISTS role_systems (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		role_name VARCHAR(255) NOT NULL,
		role_priority INT NOT NULL DEFAULT 0,
		system_mapping_id UUID NOT NULL REFERENCES system_mappings(id),
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS role_attribute_mappings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		role_system_id UUID NOT NULL REFERENCES role_systems(id),
		attribute_mapping_id UUID REFERENCES attribute_mappings(id),
		schema_attribute VARCHAR(255) NOT NULL DEFAULT '',
		multivalued BOOLEAN DEFAULT false,
		strategy VARCHAR(50) NOT NULL DEFAULT 'SET',
		disabled_default_attribute BOOLEAN DEFAULT false,
		transform_to_resource TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS identities (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username VARCHAR(255) UNIQUE NOT NULL,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		disabled BOOLEAN DEFAULT false,
		extended JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS identity_roles (
		identity_id UUID NOT NULL REFERENCES identities(id),
		role_system_id UUID NOT NULL REFERENCES role_systems(id),
		PRIMARY KEY (identity_id, role_system_id)
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		system_id UUID NOT NULL REFERENCES systems(id),
		uid VARCHAR(255) NOT NULL,
		account_type VARCHAR(50) NOT NULL DEFAULT 'PERSONAL',
		in_protection BOOLEAN DEFAULT false,
		end_of_protection TIMESTAMP,
		created_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(system_id, uid)
	);

	CREATE TABLE IF NOT EXISTS identity_accounts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		identity_id UUID NOT NULL REFERENCES identities(id),
		account_id UUID NOT NULL REFERENCES accounts(id),
		role_system_id UUID,
		ownership BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sync_configs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		system_mapping_id UUID NOT NULL REFERENCES system_mappings(id),
		name VARCHAR(255) UNIQUE NOT NULL,
		enabled BOOLEAN DEFAULT true,
		correlation_attribute VARCHAR(255) NOT NULL DEFAULT '',
		token_attribute VARCHAR(255) NOT NULL DEFAULT '',
		token TEXT NOT NULL DEFAULT '',
		custom_filter BOOLEAN DEFAULT false,
		filter_attribute VARCHAR(255) NOT NULL DEFAULT '',
		filter_operator VARCHAR(50) NOT NULL DEFAULT 'GT',
		reconciliation BOOLEAN DEFAULT false,
		linked_action VARCHAR(50) NOT NULL DEFAULT 'IGNORE',
		unlinked_action VARCHAR(50) NOT NULL DEFAULT 'IGNORE',
		missing_entity_action VARCHAR(50) NOT NULL DEFAULT 'IGNORE',
		missing_account_action VARCHAR(50) NOT NULL DEFAULT 'IGNORE',
		running BOOLEAN DEFAULT false,
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id UUID PRIMARY KEY,
		sync_config_id UUID NOT NULL REFERENCES sync_configs(id),
		state VARCHAR(50) NOT NULL,
		started TIMESTAMP NOT NULL,
		ended TIMESTAMP,
		token TEXT NOT NULL DEFAULT '',
		contains_error BOOLEAN DEFAULT false
	);

	CREATE TABLE IF NOT EXISTS sync_action_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sync_log_id UUID NOT NULL REFERENCES sync_logs(id),
		action VARCHAR(100) NOT NULL,
		item_count INT NOT NULL DEFAULT 0,
		UNIQUE(sync_log_id, action)
	);

	CREATE TABLE IF NOT EXISTS sync_item_logs (
		id UUID PRIMARY KEY,
		action_log_id UUID NOT NULL REFERENCES sync_action_logs(id),
		identification VARCHAR(255) NOT NULL DEFAULT '',
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		result VARCHAR(20) NOT NULL,
		created_at TIMESTAMP DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS trusted_services (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		api_key VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		allowed_actions TEXT[],
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT NOW()
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return err
	}

	log.Println("[database] Migrations applied")
	return nil
}
