package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

type TrustedServiceRepository struct {
	db *sql.DB
}

func NewTrustedServiceRepository(db *sql.DB) *TrustedServiceRepository {
	return &TrustedServiceRepository{db: db}
}

func (r *TrustedServiceRepository) FindByAPIKey(ctx context.Context, apiKey string) (*models.TrustedService, error) {
	query := `
		SELECT id, api_key, name, allowed_actions, is_active, created_at
		FROM trusted_services
		WHERE api_key = $1 AND is_active = true
	`

	service := &models.TrustedService{}
	var actions pq.StringArray

	err := r.db.QueryRowContext(ctx, query, apiKey).Scan(
		&service.ID,
		&service.APIKey,
		&service.Name,
		&actions,
		&service.IsActive,
		&service.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	service.AllowedActions = []string(actions)
	return service, nil
}

func (r *TrustedServiceRepository) Create(ctx context.Context, service *models.TrustedService) error {
	if service.ID == "" {
		service.ID = uuid.New().String()
	}

	query := `
		INSERT INTO trusted_services (id, api_key, name, allowed_actions, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		service.ID,
		service.APIKey,
		service.Name,
		pq.StringArray(service.AllowedActions),
		service.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create trusted service: %w", err)
	}
	return nil
}
