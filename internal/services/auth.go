package services

import (
	"context"
	"fmt"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// TrustedServiceStore looks up trusted services by their API key. Inactive
// services must not be returned.
type TrustedServiceStore interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.TrustedService, error)
}

type AuthService struct {
	store TrustedServiceStore
}

func NewAuthService(store TrustedServiceStore) *AuthService {
	return &AuthService{store: store}
}

// ValidateAPIKey validates an API key and returns the trusted service
func (s *AuthService) ValidateAPIKey(ctx context.Context, apiKey string) (*models.TrustedService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing api_key")
	}

	service, err := s.store.FindByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to validate api_key: %w", err)
	}

	if service == nil {
		return nil, fmt.Errorf("invalid api_key")
	}

	return service, nil
}

// ValidateAction checks if the service can perform the action
func (s *AuthService) ValidateAction(service *models.TrustedService, action string) error {
	if !service.CanPerformAction(action) {
		return fmt.Errorf("action '%s' not allowed for service '%s'", action, service.Name)
	}
	return nil
}
