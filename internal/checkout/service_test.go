package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/models"
)

type catalogStub struct {
	assets map[string]models.Asset
	err    error
}

func (c catalogStub) FindMany(_ context.Context, ids []string) (map[string]models.Asset, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]models.Asset)
	for _, id := range ids {
		if asset, ok := c.assets[id]; ok {
			out[id] = asset
		}
	}
	return out, nil
}

type libraryStub struct {
	entries map[string][]string
	err     error
}

func (l *libraryStub) AddEntries(_ context.Context, userID string, assetIDs []string) error {
	if l.err != nil {
		return l.err
	}
	if l.entries == nil {
		l.entries = make(map[string][]string)
	}
	l.entries[userID] = append(l.entries[userID], assetIDs...)
	return nil
}

func liveAsset(id string, price int64) models.Asset {
	return models.Asset{
		ID:         id,
		OwnerID:    "seller-1",
		Title:      "Asset " + id,
		PriceCents: price,
		FileURL:    "https://cdn.example.com/assets_bucket/seller-1/" + id + ".png",
		FileType:   models.FileTypeImage,
		Active:     true,
	}
}

func snapshot(asset models.Asset) models.CartItem {
	return models.SnapshotOf(asset, time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC))
}

func seedCart(t *testing.T, store cart.Store, userID string, items ...models.CartItem) {
	t.Helper()
	for _, item := range items {
		if _, err := store.Add(context.Background(), userID, item); err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}
}

func TestPaySuccessCreatesEntriesAndClearsCart(t *testing.T) {
	ctx := context.Background()
	store := cart.NewInMemoryStore()
	a, b := liveAsset("a", 1000), liveAsset("b", 2500)
	seedCart(t, store, "user-1", snapshot(a), snapshot(b))

	library := &libraryStub{}
	svc := &Service{
		Cart:    store,
		Catalog: catalogStub{assets: map[string]models.Asset{"a": a, "b": b}},
		Library: library,
	}

	receipt, err := svc.Pay(ctx, "user-1", OutcomeSuccess)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if receipt.Entries != 2 || receipt.TotalCents != 3500 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	if got := library.entries["user-1"]; len(got) != 2 {
		t.Fatalf("expected exactly 2 library entries, got %v", got)
	}

	items, _ := store.Items(ctx, "user-1")
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(items))
	}
}

func TestPayFailHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	store := cart.NewInMemoryStore()
	a := liveAsset("a", 1000)
	seedCart(t, store, "user-1", snapshot(a))

	library := &libraryStub{}
	svc := &Service{
		Cart:    store,
		Catalog: catalogStub{assets: map[string]models.Asset{"a": a}},
		Library: library,
	}

	if _, err := svc.Pay(ctx, "user-1", OutcomeFail); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}

	if len(library.entries) != 0 {
		t.Fatal("declined payment must not create entries")
	}
	items, _ := store.Items(ctx, "user-1")
	if len(items) != 1 {
		t.Fatalf("declined payment must leave the cart unchanged, got %d items", len(items))
	}
}

func TestPayEmptyCart(t *testing.T) {
	svc := &Service{
		Cart:    cart.NewInMemoryStore(),
		Catalog: catalogStub{},
		Library: &libraryStub{},
	}

	if _, err := svc.Pay(context.Background(), "user-1", OutcomeSuccess); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestPayUnknownOutcome(t *testing.T) {
	svc := &Service{Cart: cart.NewInMemoryStore(), Catalog: catalogStub{}, Library: &libraryStub{}}

	if _, err := svc.Pay(context.Background(), "user-1", Outcome("maybe")); !errors.Is(err, ErrUnknownOutcome) {
		t.Fatalf("expected unknown outcome error, got %v", err)
	}
}

func TestPayRepricesDriftedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := cart.NewInMemoryStore()

	stale := liveAsset("a", 1000)
	seedCart(t, store, "user-1", snapshot(stale))

	// Seller raised the price after the snapshot was taken.
	current := stale
	current.PriceCents = 1800

	library := &libraryStub{}
	svc := &Service{
		Cart:    store,
		Catalog: catalogStub{assets: map[string]models.Asset{"a": current}},
		Library: library,
	}

	_, err := svc.Pay(ctx, "user-1", OutcomeSuccess)
	var changed *CartChangedError
	if !errors.As(err, &changed) {
		t.Fatalf("expected CartChangedError, got %v", err)
	}
	if len(changed.Repriced) != 1 || changed.Repriced[0] != "a" {
		t.Fatalf("unexpected repriced list: %v", changed.Repriced)
	}
	if len(library.entries) != 0 {
		t.Fatal("aborted purchase must not create entries")
	}

	// The persisted cart now carries the live price, so a retry settles.
	items, _ := store.Items(ctx, "user-1")
	if len(items) != 1 || items[0].PriceCents != 1800 {
		t.Fatalf("expected re-priced cart, got %+v", items)
	}

	receipt, err := svc.Pay(ctx, "user-1", OutcomeSuccess)
	if err != nil {
		t.Fatalf("retry after re-price: %v", err)
	}
	if receipt.TotalCents != 1800 {
		t.Fatalf("unexpected retry total: %d", receipt.TotalCents)
	}
}

func TestPayDropsMissingAndInactiveAssets(t *testing.T) {
	ctx := context.Background()
	store := cart.NewInMemoryStore()

	kept := liveAsset("kept", 500)
	hidden := liveAsset("hidden", 700)
	gone := liveAsset("gone", 900)
	seedCart(t, store, "user-1", snapshot(kept), snapshot(hidden), snapshot(gone))

	hidden.Active = false

	svc := &Service{
		Cart:    store,
		Catalog: catalogStub{assets: map[string]models.Asset{"kept": kept, "hidden": hidden}},
		Library: &libraryStub{},
	}

	_, err := svc.Pay(ctx, "user-1", OutcomeSuccess)
	var changed *CartChangedError
	if !errors.As(err, &changed) {
		t.Fatalf("expected CartChangedError, got %v", err)
	}
	if len(changed.Removed) != 2 {
		t.Fatalf("expected 2 removed entries, got %v", changed.Removed)
	}

	items, _ := store.Items(ctx, "user-1")
	if len(items) != 1 || items[0].AssetID != "kept" {
		t.Fatalf("unexpected surviving cart: %+v", items)
	}
}

func TestPayInsertFailureLeavesCartForRetry(t *testing.T) {
	ctx := context.Background()
	store := cart.NewInMemoryStore()
	a := liveAsset("a", 1000)
	seedCart(t, store, "user-1", snapshot(a))

	svc := &Service{
		Cart:    store,
		Catalog: catalogStub{assets: map[string]models.Asset{"a": a}},
		Library: &libraryStub{err: errors.New("db down")},
	}

	if _, err := svc.Pay(ctx, "user-1", OutcomeSuccess); err == nil {
		t.Fatal("expected error")
	}

	items, _ := store.Items(ctx, "user-1")
	if len(items) != 1 {
		t.Fatalf("cart must survive a failed insert, got %d items", len(items))
	}
}
