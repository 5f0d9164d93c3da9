package cart

import (
	"context"
	"sync"

	"github.com/assetshive/backend/internal/models"
)

// NewInMemoryStore returns a Store backed by an in-memory map.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{carts: make(map[string][]models.CartItem)}
}

// InMemoryStore implements Store for tests and local development.
type InMemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]models.CartItem
}

// Add appends a snapshot unless the asset id is already present.
func (s *InMemoryStore) Add(_ context.Context, userID string, item models.CartItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	if Contains(items, item.AssetID) {
		return false, nil
	}
	s.carts[userID] = append(items, item)
	return true, nil
}

// Remove deletes the matching entry when present.
func (s *InMemoryStore) Remove(_ context.Context, userID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i, item := range items {
		if item.AssetID == assetID {
			s.carts[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Items returns a copy of the stored list.
func (s *InMemoryStore) Items(_ context.Context, userID string) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.carts[userID]
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out, nil
}

// Replace overwrites the stored list.
func (s *InMemoryStore) Replace(_ context.Context, userID string, items []models.CartItem) error {
	copied := make([]models.CartItem, len(items))
	copy(copied, items)

	s.mu.Lock()
	s.carts[userID] = copied
	s.mu.Unlock()
	return nil
}

// Clear empties the cart.
func (s *InMemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	return nil
}
