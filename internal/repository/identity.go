package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const identitySelect = `
	SELECT id, username, first_name, last_name, email, disabled, extended, created_at
	FROM identities
`

func (r *IdentityRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, identitySelect+` WHERE id = $1`, id))
}

func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*models.Identity, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, identitySelect+` WHERE username = $1`, username))
}

func (r *IdentityRepository) List(ctx context.Context) ([]models.Identity, error) {
	rows, err := r.db.QueryContext(ctx, identitySelect+` ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows.Scan)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	return identities, rows.Err()
}

func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	extended, err := json.Marshal(orEmpty(identity.Extended))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO identities (id, username, first_name, last_name, email, disabled, extended)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		identity.ID,
		identity.Username,
		identity.FirstName,
		identity.LastName,
		identity.Email,
		identity.Disabled,
		extended,
	).Scan(&identity.CreatedAt)
}

func (r *IdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	extended, err := json.Marshal(orEmpty(identity.Extended))
	if err != nil {
		return err
	}
	query := `
		UPDATE identities
		SET username = $2, first_name = $3, last_name = $4, email = $5, disabled = $6, extended = $7
		WHERE id = $1
	`
	_, err = r.db.ExecContext(ctx, query,
		identity.ID,
		identity.Username,
		identity.FirstName,
		identity.LastName,
		identity.Email,
		identity.Disabled,
		extended,
	)
	return err
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM identity_roles WHERE identity_id = $1`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	return err
}

func (r *IdentityRepository) scanOne(row *sql.Row) (*models.Identity, error) {
	identity, err := scanIdentity(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func scanIdentity(scan func(dest ...any) error) (*models.Identity, error) {
	identity := &models.Identity{}
	var extended []byte
	err := scan(
		&identity.ID,
		&identity.Username,
		&identity.FirstName,
		&identity.LastName,
		&identity.Email,
		&identity.Disabled,
		&extended,
		&identity.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extended) > 0 {
		if err := json.Unmarshal(extended, &identity.Extended); err != nil {
			return nil, err
		}
	}
	return identity, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
