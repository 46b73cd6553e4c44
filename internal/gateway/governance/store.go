package governance

import (
	"context"

	"github.com/chaicafe/modelgate/internal/shared/models"
)

// Store is the persistence surface the governance pipeline needs.
// *database.DB satisfies it.
type Store interface {
	GetTier(ctx context.Context, name string) (*models.Tier, error)
	GetUserTier(ctx context.Context, userID string) (string, error)
	InsertUserTier(ctx context.Context, userID, tierName string) error
	GetSelectedModel(ctx context.Context, userID string) (string, error)
	SetSelectedModel(ctx context.Context, userID, model string) error
	ClearSelectedModel(ctx context.Context, userID string) error
	HasTierModelAccess(ctx context.Context, tierName, model string) (bool, error)
	ListTierModels(ctx context.Context, tierName string) ([]models.Model, error)
	GetUserUsage(ctx context.Context, userID string) ([]models.UsageRecord, error)
	RecordUsage(ctx context.Context, userID, model string, tokens int64) error
}
