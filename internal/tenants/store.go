package tenants

import (
	"context"
	"fmt"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

// Store is the tenant configuration store. Implementations return
// models.ErrTenantNotFound, models.ErrPromptNotFound or
// models.ErrProviderNotFound for missing rows and wrap connectivity failures
// with models.ErrStoreUnavailable.
type Store interface {
	GetTenant(ctx context.Context, tenantID int) (*models.Tenant, error)
	GetTenantByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error)

	// GetCurrentPrompt returns the highest prompt version.
	GetCurrentPrompt(ctx context.Context, tenantID int) (*models.PromptVersion, error)
	ListPromptVersions(ctx context.Context, tenantID int) ([]models.PromptVersion, error)
	GetPromptVersion(ctx context.Context, tenantID, version int) (*models.PromptVersion, error)
	// CreatePromptVersion appends a new version. Existing versions are never
	// modified.
	CreatePromptVersion(ctx context.Context, tenantID int, prompt, note string) (*models.PromptVersion, error)

	GetProvider(ctx context.Context, tenantID, providerID int) (*models.Provider, error)

	InsertQueryLog(ctx context.Context, rec *models.QueryLogRecord) error
	GetQueryAnalytics(ctx context.Context, tenantID, daysBack int) (*models.QueryAnalytics, error)
}

// RestorePromptVersion makes an old version current by appending a copy of
// it as a new version.
func RestorePromptVersion(ctx context.Context, s Store, tenantID, version int) (*models.PromptVersion, error) {
	old, err := s.GetPromptVersion(ctx, tenantID, version)
	if err != nil {
		return nil, err
	}
	return s.CreatePromptVersion(ctx, tenantID, old.Prompt, fmt.Sprintf("Restored from version %d", version))
}
