package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/models"
)

func cartTestHandler(t *testing.T) (CartHandler, *stubAssetStore, *cart.InMemoryStore, string) {
	t.Helper()

	store := newStubAssetStore()
	carts := cart.NewInMemoryStore()
	manager := newTestSessionManager()
	handler := CartHandler{
		Cart:     carts,
		Assets:   store,
		Notifier: cart.NewNotifier(),
		Sessions: manager,
	}
	return handler, store, carts, bearerFor(t, manager, "buyer-1")
}

func TestCartHandlerAddItem(t *testing.T) {
	handler, store, _, token := cartTestHandler(t)
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Title: "Dunes", PriceCents: 1500, Active: true}

	body := strings.NewReader(`{"assetId": "asset-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.AddItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp addCartItemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Added || len(resp.Items) != 1 || resp.TotalCents != 1500 {
		t.Fatalf("unexpected cart state: %+v", resp)
	}
	if resp.Items[0].Title != "Dunes" {
		t.Fatalf("expected a snapshot of the listing, got %+v", resp.Items[0])
	}
}

func TestCartHandlerAddItemTwiceIsNoOp(t *testing.T) {
	handler, store, _, token := cartTestHandler(t)
	store.assets["asset-1"] = models.Asset{ID: "asset-1", PriceCents: 1500, Active: true}

	for i := 0; i < 2; i++ {
		body := strings.NewReader(`{"assetId": "asset-1"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.AddItem(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected status %d got %d", i, http.StatusOK, rec.Code)
		}

		var resp addCartItemResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.Items) != 1 {
			t.Fatalf("attempt %d: expected 1 item, got %d", i, len(resp.Items))
		}
		if i == 1 && resp.Added {
			t.Fatal("expected the second add to report added=false")
		}
	}
}

func TestCartHandlerAddItemRejectsInactive(t *testing.T) {
	handler, store, _, token := cartTestHandler(t)
	store.assets["asset-1"] = models.Asset{ID: "asset-1", Active: false}

	body := strings.NewReader(`{"assetId": "asset-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.AddItem(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCartHandlerAddItemUnknownAsset(t *testing.T) {
	handler, _, _, token := cartTestHandler(t)

	body := strings.NewReader(`{"assetId": "missing"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.AddItem(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCartHandlerRemoveItem(t *testing.T) {
	handler, _, carts, token := cartTestHandler(t)
	if _, err := carts.Add(context.Background(), "buyer-1", models.CartItem{AssetID: "asset-1", PriceCents: 900}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/asset-1", nil)
	req.SetPathValue("assetID", "asset-1")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.RemoveItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 0 || resp.TotalCents != 0 {
		t.Fatalf("expected an empty cart, got %+v", resp)
	}
}

func TestCartHandlerRemoveAbsentItem(t *testing.T) {
	handler, _, _, token := cartTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/missing", nil)
	req.SetPathValue("assetID", "missing")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.RemoveItem(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
}

func TestCartHandlerClear(t *testing.T) {
	handler, _, carts, token := cartTestHandler(t)
	if _, err := carts.Add(context.Background(), "buyer-1", models.CartItem{AssetID: "asset-1"}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	items, err := carts.Items(context.Background(), "buyer-1")
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected the cart to be empty, got %d items", len(items))
	}
}

func TestCartHandlerEventsStream(t *testing.T) {
	handler, _, carts, token := cartTestHandler(t)
	if _, err := carts.Add(context.Background(), "buyer-1", models.CartItem{AssetID: "asset-1"}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Events(rec, req)
	}()

	// Give the stream time to subscribe before publishing. The buffered
	// subscriber channel holds the event until the loop drains it.
	time.Sleep(50 * time.Millisecond)
	handler.Notifier.Publish(cart.Event{UserID: "buyer-1", Count: 2})
	handler.Notifier.Publish(cart.Event{UserID: "someone-else", Count: 9})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `{"count":1}`) {
		t.Fatalf("expected the initial count event, body: %q", body)
	}
	if !strings.Contains(body, `{"count":2}`) {
		t.Fatalf("expected the published event, body: %q", body)
	}
	if strings.Contains(body, `{"count":9}`) {
		t.Fatalf("expected other users' events to be filtered, body: %q", body)
	}
}
