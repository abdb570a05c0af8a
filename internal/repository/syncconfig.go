package repository

import (
	"context"
	"database/sql"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

type SyncConfigRepository struct {
	db *sql.DB
}

func NewSyncConfigRepository(db *sql.DB) *SyncConfigRepository {
	return &SyncConfigRepository{db: db}
}

const syncConfigSelect = `
	SELECT id, system_mapping_id, name, enabled, correlation_attribute,
	       token_attribute, token, custom_filter, filter_attribute, filter_operator,
	       reconciliation, linked_action, unlinked_action, missing_entity_action,
	       missing_account_action, running, created_at
	FROM sync_configs
`

func (r *SyncConfigRepository) Get(ctx context.Context, id string) (*models.SyncConfig, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, syncConfigSelect+` WHERE id = $1`, id))
}

func (r *SyncConfigRepository) List(ctx context.Context) ([]models.SyncConfig, error) {
	rows, err := r.db.QueryContext(ctx, syncConfigSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.SyncConfig
	for rows.Next() {
		cfg, err := scanSyncConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (r *SyncConfigRepository) Create(ctx context.Context, cfg *models.SyncConfig) error {
	query := `
		INSERT INTO sync_configs (system_mapping_id, name, enabled, correlation_attribute,
			token_attribute, token, custom_filter, filter_attribute, filter_operator,
			reconciliation, linked_action, unlinked_action, missing_entity_action,
			missing_account_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		cfg.SystemMappingID,
		cfg.Name,
		cfg.Enabled,
		cfg.CorrelationAttribute,
		cfg.TokenAttribute,
		cfg.Token,
		cfg.CustomFilter,
		cfg.FilterAttribute,
		cfg.FilterOperator,
		cfg.Reconciliation,
		cfg.LinkedAction,
		cfg.UnlinkedAction,
		cfg.MissingEntityAction,
		cfg.MissingAccountAction,
	).Scan(&cfg.ID, &cfg.CreatedAt)
}

// AcquireRun atomically flips the running flag; it reports false when
// another run already holds it.
func (r *SyncConfigRepository) AcquireRun(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_configs SET running = true WHERE id = $1 AND running = false`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseRun clears the running flag unconditionally and persists the token.
func (r *SyncConfigRepository) ReleaseRun(ctx context.Context, id string, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_configs SET running = false, token = $2 WHERE id = $1`, id, token)
	return err
}

// ResetRunning clears every persisted running flag. Startup recovery after a
// crash that left runs marked running with no live process.
func (r *SyncConfigRepository) ResetRunning(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_configs SET running = false WHERE running = true`)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *SyncConfigRepository) scanOne(row *sql.Row) (*models.SyncConfig, error) {
	cfg, err := scanSyncConfig(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func scanSyncConfig(scan func(dest ...any) error) (*models.SyncConfig, error) {
	cfg := &models.SyncConfig{}
	err := scan(
		&cfg.ID,
		&cfg.SystemMappingID,
		&cfg.Name,
		&cfg.Enabled,
		&cfg.CorrelationAttribute,
		&cfg.TokenAttribute,
		&cfg.Token,
		&cfg.CustomFilter,
		&cfg.FilterAttribute,
		&cfg.FilterOperator,
		&cfg.Reconciliation,
		&cfg.LinkedAction,
		&cfg.UnlinkedAction,
		&cfg.MissingEntityAction,
		&cfg.MissingAccountAction,
		&cfg.Running,
		&cfg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
