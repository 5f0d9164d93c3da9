package cart

import (
	"context"

	"github.com/assetshive/backend/internal/models"
)

// Store persists a user's cart as a single ordered list of snapshots. Every
// mutation rewrites the whole list, so the persisted slot is the only source
// of truth. Concurrent writers race last-writer-wins, which the domain
// tolerates (a stale view corrects itself on the next read).
type Store interface {
	// Add appends a snapshot unless an item with the same asset id is already
	// present. It reports whether the item was inserted.
	Add(ctx context.Context, userID string, item models.CartItem) (bool, error)
	// Remove deletes the entry with the matching asset id, a no-op when absent.
	Remove(ctx context.Context, userID, assetID string) error
	// Items returns the full ordered list of snapshots.
	Items(ctx context.Context, userID string) ([]models.CartItem, error)
	// Replace overwrites the whole list, used when checkout re-prices entries.
	Replace(ctx context.Context, userID string, items []models.CartItem) error
	// Clear empties the cart.
	Clear(ctx context.Context, userID string) error
}

// Total sums the snapshot prices of the provided items.
func Total(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.PriceCents
	}
	return total
}

// Contains reports whether the list already holds the asset id.
func Contains(items []models.CartItem, assetID string) bool {
	for _, item := range items {
		if item.AssetID == assetID {
			return true
		}
	}
	return false
}
