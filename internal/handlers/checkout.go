package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/checkout"
	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/models"
)

// CheckoutHandler settles the caller's cart through the simulated gateway.
type CheckoutHandler struct {
	Payments PaymentProcessor
	Notifier CartNotifier
	Sessions SessionManager
}

// Pay handles POST /api/v1/checkout.
func (h CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
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

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid checkout payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	receipt, err := h.Payments.Pay(ctx, userID, checkout.Outcome(req.Outcome))
	if err != nil {
		var changed *checkout.CartChangedError
		switch {
		case errors.Is(err, checkout.ErrDeclined):
			respondJSON(ctx, w, http.StatusPaymentRequired, map[string]string{"error": "payment was declined"})
		case errors.Is(err, checkout.ErrEmptyCart):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		case errors.Is(err, checkout.ErrUnknownOutcome):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "outcome must be success or fail"})
		case errors.As(err, &changed):
			if changed.Items == nil {
				changed.Items = []models.CartItem{}
			}
			h.publish(userID, len(changed.Items))
			respondJSON(ctx, w, http.StatusConflict, cartChangedResponse{
				Error:      "cart changed since items were added; review and retry",
				Items:      changed.Items,
				Removed:    changed.Removed,
				Repriced:   changed.Repriced,
				TotalCents: cart.Total(changed.Items),
			})
		default:
			logger.Error("checkout failed", "userId", userID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "purchase could not be completed; your cart is unchanged"})
		}
		return
	}

	h.publish(userID, 0)
	respondJSON(ctx, w, http.StatusOK, receipt)
}

func (h CheckoutHandler) publish(userID string, count int) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.Publish(cart.Event{UserID: userID, Count: count})
}

type payRequest struct {
	Outcome string `json:"outcome"`
}

type cartChangedResponse struct {
	Error      string            `json:"error"`
	Items      []models.CartItem `json:"items"`
	Removed    []string          `json:"removed,omitempty"`
	Repriced   []string          `json:"repriced,omitempty"`
	TotalCents int64             `json:"totalCents"`
}
