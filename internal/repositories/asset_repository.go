package repositories

import (
	"context"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/models"
)

// AssetRepository exposes data access for asset listings.
type AssetRepository interface {
	Create(ctx context.Context, asset models.Asset) error
	FindByID(ctx context.Context, id string) (models.Asset, error)
	FindMany(ctx context.Context, ids []string) (map[string]models.Asset, error)
	ListPublic(ctx context.Context, fileType string, page, pageSize int) ([]models.Asset, int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Asset, error)
	UpdateListing(ctx context.Context, assetID, ownerID string, update AssetUpdate) error
	Delete(ctx context.Context, assetID string) error
}

// LibraryRepository exposes data access for purchase entitlements.
type LibraryRepository interface {
	AddEntries(ctx context.Context, userID string, assetIDs []string) error
	ListForUser(ctx context.Context, userID string) ([]models.Asset, error)
	Has(ctx context.Context, userID, assetID string) (bool, error)
}

var _ cart.Store = (*PostgresCartStore)(nil)
