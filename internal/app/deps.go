package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/assetshive/backend/internal/assets"
	"github.com/assetshive/backend/internal/auth"
	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/checkout"
	"github.com/assetshive/backend/internal/config"
	"github.com/assetshive/backend/internal/db"
	"github.com/assetshive/backend/internal/handlers"
	"github.com/assetshive/backend/internal/middleware"
	"github.com/assetshive/backend/internal/repositories"
	"github.com/assetshive/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	objectStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	assetRepo := repositories.NewPostgresAssetRepository(pool)
	library := repositories.NewPostgresLibraryRepository(pool)
	cartStore := repositories.NewPostgresCartStore(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	lifecycle := &assets.Service{
		Storage: objectStore,
		Records: assetRepo,
		Logger:  logger,
	}

	payments := &checkout.Service{
		Cart:    cartStore,
		Catalog: assetRepo,
		Library: library,
	}

	return handlers.Dependencies{
		Users:          users,
		Sessions:       auth.NewManager(cfg.AccessTTL, cfg.RefreshTTL, sessionStore),
		Assets:         assetRepo,
		AssetLifecycle: lifecycle,
		Library:        library,
		Cart:           cartStore,
		CartNotifier:   cart.NewNotifier(),
		Payments:       payments,
		AuthLimiter:    middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		MaxUpload:      cfg.MaxUploadSize,
	}, nil
}
