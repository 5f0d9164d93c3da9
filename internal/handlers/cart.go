package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/models"
	"github.com/assetshive/backend/internal/repositories"
)

// CartHandler exposes the user's cart slot.
type CartHandler struct {
	Cart     cart.Store
	Assets   AssetStore
	Notifier CartNotifier
	Sessions SessionManager
	NowFunc  func() time.Time
}

// Handle dispatches /api/v1/cart: GET returns the cart, DELETE clears it.
func (h CartHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.show(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h CartHandler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("load cart", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load cart"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, cartResponse{Items: items, TotalCents: cart.Total(items)})
}

func (h CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	if err := h.Cart.Clear(ctx, userID); err != nil {
		logging.FromContext(ctx).Error("clear cart", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to clear cart"})
		return
	}

	h.publish(userID, 0)
	respondJSON(ctx, w, http.StatusOK, cartResponse{Items: []models.CartItem{}, TotalCents: 0})
}

// AddItem handles POST /api/v1/cart/items. The item stored is a snapshot of
// the live listing; adding an id already present is a no-op reported to the
// caller rather than an error.
func (h CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid cart add payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.AssetID = strings.TrimSpace(req.AssetID)
	if req.AssetID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "assetId is required"})
		return
	}

	asset, err := h.Assets.FindByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
			return
		}
		logger.Error("load asset for cart", "assetId", req.AssetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load asset"})
		return
	}
	if !asset.Active {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
		return
	}

	added, err := h.Cart.Add(ctx, userID, models.SnapshotOf(asset, h.now()))
	if err != nil {
		logger.Error("add to cart", "userId", userID, "assetId", req.AssetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to update cart"})
		return
	}

	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		logger.Error("reload cart", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load cart"})
		return
	}

	if added {
		h.publish(userID, len(items))
	}

	respondJSON(ctx, w, http.StatusOK, addCartItemResponse{
		Added:      added,
		Items:      items,
		TotalCents: cart.Total(items),
	})
}

// RemoveItem handles DELETE /api/v1/cart/items/{assetID}. Removing an absent
// id succeeds without changing anything.
func (h CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	assetID := r.PathValue("assetID")
	if err := h.Cart.Remove(ctx, userID, assetID); err != nil {
		logger.Error("remove from cart", "userId", userID, "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to update cart"})
		return
	}

	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		logger.Error("reload cart", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load cart"})
		return
	}

	h.publish(userID, len(items))
	respondJSON(ctx, w, http.StatusOK, cartResponse{Items: items, TotalCents: cart.Total(items)})
}

// Events handles GET /api/v1/cart/events: a server-sent event stream of the
// caller's cart item count, so other open views can refresh their badge.
// Delivery is best-effort; a view that connects late simply starts from the
// current count.
func (h CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.Notifier.Subscribe()
	defer cancel()

	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("load cart for event stream", "userId", userID, "error", err)
		return
	}
	writeCartEvent(w, len(items))
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.UserID != userID {
				continue
			}
			writeCartEvent(w, event.Count)
			flusher.Flush()
		}
	}
}

func writeCartEvent(w http.ResponseWriter, count int) {
	fmt.Fprintf(w, "event: cart\ndata: {\"count\":%d}\n\n", count)
}

func (h CartHandler) publish(userID string, count int) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.Publish(cart.Event{UserID: userID, Count: count})
}

func (h CartHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type addCartItemRequest struct {
	AssetID string `json:"assetId"`
}

type cartResponse struct {
	Items      []models.CartItem `json:"items"`
	TotalCents int64             `json:"totalCents"`
}

type addCartItemResponse struct {
	Added      bool              `json:"added"`
	Items      []models.CartItem `json:"items"`
	TotalCents int64             `json:"totalCents"`
}
