package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountSelect = `
	SELECT id, system_id, uid, account_type, in_protection, end_of_protection, created_at
	FROM accounts
`

func (r *AccountRepository) FindByUID(ctx context.Context, systemID, uid string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, accountSelect+` WHERE system_id = $1 AND uid = $2`, systemID, uid)
	return r.scanOne(row)
}

func (r *AccountRepository) ListBySystem(ctx context.Context, systemID string) ([]models.Account, error) {
	return r.list(ctx, accountSelect+` WHERE system_id = $1 ORDER BY uid`, systemID)
}

func (r *AccountRepository) ListByIdentity(ctx context.Context, identityID string) ([]models.Account, error) {
	query := `
		SELECT a.id, a.system_id, a.uid, a.account_type, a.in_protection, a.end_of_protection, a.created_at
		FROM accounts a
		JOIN identity_accounts ia ON ia.account_id = a.id
		WHERE ia.identity_id = $1 AND ia.ownership = true
		ORDER BY a.uid
	`
	return r.list(ctx, query, identityID)
}

// ListProtectionExpired returns protected accounts whose grace period passed
// before the given instant. Feeds the periodic protection sweep.
func (r *AccountRepository) ListProtectionExpired(ctx context.Context, now time.Time) ([]models.Account, error) {
	query := accountSelect + `
		WHERE in_protection = true AND end_of_protection IS NOT NULL AND end_of_protection < $1
	`
	return r.list(ctx, query, now)
}

func (r *AccountRepository) Create(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (id, system_id, uid, account_type, in_protection, end_of_protection)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		acc.ID,
		acc.SystemID,
		acc.UID,
		acc.AccountType,
		acc.InProtection,
		nullTime(acc.EndOfProtection),
	).Scan(&acc.CreatedAt)
}

func (r *AccountRepository) Update(ctx context.Context, acc *models.Account) error {
	query := `
		UPDATE accounts
		SET uid = $2, account_type = $3, in_protection = $4, end_of_protection = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		acc.ID,
		acc.UID,
		acc.AccountType,
		acc.InProtection,
		nullTime(acc.EndOfProtection),
	)
	return err
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

func (r *AccountRepository) LinksForAccount(ctx context.Context, accountID string) ([]models.IdentityAccount, error) {
	query := `
		SELECT id, identity_id, account_id, COALESCE(role_system_id::text, ''), ownership, created_at
		FROM identity_accounts
		WHERE account_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.IdentityAccount
	for rows.Next() {
		var link models.IdentityAccount
		err := rows.Scan(
			&link.ID,
			&link.IdentityID,
			&link.AccountID,
			&link.RoleSystemID,
			&link.Ownership,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *AccountRepository) AddLink(ctx context.Context, link *models.IdentityAccount) error {
	query := `
		INSERT INTO identity_accounts (id, identity_id, account_id, role_system_id, ownership)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5)
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		link.ID,
		link.IdentityID,
		link.AccountID,
		link.RoleSystemID,
		link.Ownership,
	).Scan(&link.CreatedAt)
}

func (r *AccountRepository) RemoveLink(ctx context.Context, linkID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM identity_accounts WHERE id = $1`, linkID)
	return err
}

func (r *AccountRepository) RemoveLinksForAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM identity_accounts WHERE account_id = $1`, accountID)
	return err
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	acc, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func scanAccount(scan func(dest ...any) error) (*models.Account, error) {
	acc := &models.Account{}
	var end sql.NullTime
	err := scan(
		&acc.ID,
		&acc.SystemID,
		&acc.UID,
		&acc.AccountType,
		&acc.InProtection,
		&end,
		&acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if end.Valid {
		acc.EndOfProtection = &end.Time
	}
	return acc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
