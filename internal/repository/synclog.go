package repository

import (
	"context"
	"database/sql"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// SyncLogRepository is the append-only run logger sink.
type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) CreateRun(ctx context.Context, run *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (id, sync_config_id, state, started, token, contains_error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.SyncConfigID,
		run.State,
		run.Started,
		run.Token,
		run.ContainsError,
	)
	return err
}

func (r *SyncLogRepository) FinishRun(ctx context.Context, run *models.SyncLog) error {
	query := `
		UPDATE sync_logs
		SET state = $2, ended = $3, token = $4, contains_error = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.State,
		run.Ended,
		run.Token,
		run.ContainsError,
	)
	return err
}

// LogItem files one item under the bucket for the executed action, creating
// the bucket on first use and incrementing its count. Buckets and items are
// written in one transaction so counts never drift from rows.
func (r *SyncLogRepository) LogItem(ctx context.Context, syncLogID, action string, item *models.SyncItemLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bucketID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sync_action_logs (sync_log_id, action, item_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (sync_log_id, action)
		DO UPDATE SET item_count = sync_action_logs.item_count + 1
		RETURNING id
	`, syncLogID, action).Scan(&bucketID)
	if err != nil {
		return err
	}
	item.ActionLogID = bucketID

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_item_logs (id, action_log_id, identification, display_name, message, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.ActionLogID, item.Identification, item.DisplayName, item.Message, item.Result, item.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SyncLogRepository) GetRun(ctx context.Context, id string) (*models.SyncLog, error) {
	query := `
		SELECT id, sync_config_id, state, started, ended, token, contains_error
		FROM sync_logs
		WHERE id = $1
	`
	run := &models.SyncLog{}
	var ended sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.SyncConfigID,
		&run.State,
		&run.Started,
		&ended,
		&run.Token,
		&run.ContainsError,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		run.Ended = &ended.Time
	}
	return run, nil
}

func (r *SyncLogRepository) ListRuns(ctx context.Context, syncConfigID string) ([]models.SyncLog, error) {
	query := `
		SELECT id, sync_config_id, state, started, ended, token, contains_error
		FROM sync_logs
		WHERE sync_config_id = $1
		ORDER BY started DESC
	`
	rows, err := r.db.QueryContext(ctx, query, syncConfigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncLog
	for rows.Next() {
		var run models.SyncLog
		var ended sql.NullTime
		err := rows.Scan(
			&run.ID,
			&run.SyncConfigID,
			&run.State,
			&run.Started,
			&ended,
			&run.Token,
			&run.ContainsError,
		)
		if err != nil {
			return nil, err
		}
		if ended.Valid {
			run.Ended = &ended.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SyncLogRepository) ActionLogs(ctx context.Context, syncLogID string) ([]models.SyncActionLog, error) {
	query := `
		SELECT id, sync_log_id, action, item_count
		FROM sync_action_logs
		WHERE sync_log_id = $1
		ORDER BY action
	`
	rows, err := r.db.QueryContext(ctx, query, syncLogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.SyncActionLog
	for rows.Next() {
		var b models.SyncActionLog
		if err := rows.Scan(&b.ID, &b.SyncLogID, &b.Action, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (r *SyncLogRepository) Items(ctx context.Context, actionLogID string) ([]models.SyncItemLog, error) {
	query := `
		SELECT id, action_log_id, identification, display_name, message, result, created_at
		FROM sync_item_logs
		WHERE action_log_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, actionLogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SyncItemLog
	for rows.Next() {
		var item models.SyncItemLog
		err := rows.Scan(
			&item.ID,
			&item.ActionLogID,
			&item.Identification,
			&item.DisplayName,
			&item.Message,
			&item.Result,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
