package handlers

import (
	"context"
	"time"

	"github.com/assetshive/backend/internal/assets"
	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/checkout"
	"github.com/assetshive/backend/internal/models"
	"github.com/assetshive/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// SessionManager issues, refreshes, resolves, and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, refreshToken string)
}

// AssetStore captures the listing queries the asset and cart handlers use.
type AssetStore interface {
	FindByID(ctx context.Context, id string) (models.Asset, error)
	ListPublic(ctx context.Context, fileType string, page, pageSize int) ([]models.Asset, int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Asset, error)
	UpdateListing(ctx context.Context, assetID, ownerID string, update repositories.AssetUpdate) error
}

// AssetLifecycle runs the seller upload and delete pipelines.
type AssetLifecycle interface {
	UploadBatch(ctx context.Context, ownerID, authorName string, uploads []assets.Upload) []assets.Result
	Delete(ctx context.Context, asset models.Asset) error
}

// LibraryStore captures entitlement queries for the library handlers.
type LibraryStore interface {
	ListForUser(ctx context.Context, userID string) ([]models.Asset, error)
	Has(ctx context.Context, userID, assetID string) (bool, error)
}

// PaymentProcessor settles carts for a simulated gateway outcome.
type PaymentProcessor interface {
	Pay(ctx context.Context, userID string, outcome checkout.Outcome) (checkout.Receipt, error)
}

// CartNotifier fans cart change events out to subscribed views.
type CartNotifier interface {
	Publish(event cart.Event)
	Subscribe() (<-chan cart.Event, func())
}
