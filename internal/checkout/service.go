package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/models"
)

// Outcome is the simulated gateway result chosen by the caller. There is no
// real payment processor behind this endpoint.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
)

var (
	// ErrDeclined indicates the simulated transaction was rejected; no state changed.
	ErrDeclined = errors.New("payment declined")
	// ErrEmptyCart indicates there is nothing to purchase.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownOutcome indicates an outcome value other than success or fail.
	ErrUnknownOutcome = errors.New("unknown payment outcome")
)

// CartChangedError aborts a purchase whose snapshots drifted from the live
// listings. The persisted cart has already been re-priced; the caller reviews
// the returned items and retries.
type CartChangedError struct {
	Items    []models.CartItem
	Removed  []string
	Repriced []string
}

func (e *CartChangedError) Error() string {
	return fmt.Sprintf("cart changed since items were added: %d removed, %d re-priced", len(e.Removed), len(e.Repriced))
}

// CartStore is the slice of the cart contract checkout needs.
type CartStore interface {
	Items(ctx context.Context, userID string) ([]models.CartItem, error)
	Replace(ctx context.Context, userID string, items []models.CartItem) error
	Clear(ctx context.Context, userID string) error
}

// Catalog resolves live asset records for revalidation.
type Catalog interface {
	FindMany(ctx context.Context, ids []string) (map[string]models.Asset, error)
}

// Library persists purchase entitlements. AddEntries must be all-or-nothing:
// either every entry commits or none do, so a failed purchase is always
// retryable without duplicating entitlements.
type Library interface {
	AddEntries(ctx context.Context, userID string, assetIDs []string) error
}

// Receipt summarizes a settled purchase.
type Receipt struct {
	Entries    int   `json:"entries"`
	TotalCents int64 `json:"totalCents"`
}

// Service drives the cart-to-purchase-to-library pipeline.
type Service struct {
	Cart    CartStore
	Catalog Catalog
	Library Library
}

// Pay settles the user's cart for the simulated outcome. A fail outcome has no
// side effects. A success outcome revalidates every snapshot against the live
// listing, writes one library entry per item in a single transaction, and
// clears the cart. Any insert failure leaves the cart intact for retry.
func (s *Service) Pay(ctx context.Context, userID string, outcome Outcome) (Receipt, error) {
	switch outcome {
	case OutcomeSuccess:
	case OutcomeFail:
		return Receipt{}, ErrDeclined
	default:
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}

	ctx, span := logging.StartSpan(ctx, "checkout.pay")
	defer span.End()

	items, err := s.Cart.Items(ctx, userID)
	if err != nil {
		return Receipt{}, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return Receipt{}, ErrEmptyCart
	}

	items, changed, err := s.revalidate(ctx, userID, items)
	if err != nil {
		return Receipt{}, err
	}
	if changed != nil {
		return Receipt{}, changed
	}

	assetIDs := make([]string, len(items))
	for i, item := range items {
		assetIDs[i] = item.AssetID
	}

	if err := s.Library.AddEntries(ctx, userID, assetIDs); err != nil {
		return Receipt{}, fmt.Errorf("record purchase: %w", err)
	}

	if err := s.Cart.Clear(ctx, userID); err != nil {
		// The purchase is durable; an unclearable cart is an annoyance, not a
		// lost sale. Surface it so the caller can clear manually.
		return Receipt{}, fmt.Errorf("clear cart after purchase: %w", err)
	}

	return Receipt{Entries: len(items), TotalCents: cart.Total(items)}, nil
}

// revalidate compares every snapshot against the live listing. Missing or
// deactivated assets are dropped, drifted prices and titles are refreshed in
// place, and any change persists the corrected cart and aborts the purchase.
func (s *Service) revalidate(ctx context.Context, userID string, items []models.CartItem) ([]models.CartItem, *CartChangedError, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.AssetID
	}

	live, err := s.Catalog.FindMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("revalidate cart: %w", err)
	}

	var (
		kept     []models.CartItem
		removed  []string
		repriced []string
	)
	for _, item := range items {
		asset, ok := live[item.AssetID]
		if !ok || !asset.Active {
			removed = append(removed, item.AssetID)
			continue
		}
		if asset.PriceCents != item.PriceCents || asset.Title != item.Title || asset.FileURL != item.FileURL {
			repriced = append(repriced, item.AssetID)
			item.Title = asset.Title
			item.PriceCents = asset.PriceCents
			item.FileURL = asset.FileURL
			item.AuthorName = asset.AuthorName
		}
		kept = append(kept, item)
	}

	if len(removed) == 0 && len(repriced) == 0 {
		return items, nil, nil
	}

	if err := s.Cart.Replace(ctx, userID, kept); err != nil {
		return nil, nil, fmt.Errorf("persist revalidated cart: %w", err)
	}

	return nil, &CartChangedError{Items: kept, Removed: removed, Repriced: repriced}, nil
}
