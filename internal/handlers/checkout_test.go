package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/assetshive/backend/internal/cart"
	"github.com/assetshive/backend/internal/checkout"
	"github.com/assetshive/backend/internal/models"
)

type stubPayments struct {
	receipt checkout.Receipt
	err     error
	calls   int
}

func (s *stubPayments) Pay(_ context.Context, _ string, _ checkout.Outcome) (checkout.Receipt, error) {
	s.calls++
	if s.err != nil {
		return checkout.Receipt{}, s.err
	}
	return s.receipt, nil
}

func checkoutRequest(t *testing.T, token, outcome string) *http.Request {
	t.Helper()
	body := strings.NewReader(`{"outcome": "` + outcome + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCheckoutHandlerSuccess(t *testing.T) {
	manager := newTestSessionManager()
	payments := &stubPayments{receipt: checkout.Receipt{Entries: 2, TotalCents: 3500}}
	handler := CheckoutHandler{Payments: payments, Notifier: cart.NewNotifier(), Sessions: manager}

	token := bearerFor(t, manager, "buyer-1")
	rec := httptest.NewRecorder()

	handler.Pay(rec, checkoutRequest(t, token, "success"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var receipt checkout.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if receipt.Entries != 2 || receipt.TotalCents != 3500 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestCheckoutHandlerDeclined(t *testing.T) {
	manager := newTestSessionManager()
	payments := &stubPayments{err: checkout.ErrDeclined}
	handler := CheckoutHandler{Payments: payments, Sessions: manager}

	token := bearerFor(t, manager, "buyer-1")
	rec := httptest.NewRecorder()

	handler.Pay(rec, checkoutRequest(t, token, "fail"))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status %d got %d", http.StatusPaymentRequired, rec.Code)
	}
}

func TestCheckoutHandlerEmptyCart(t *testing.T) {
	manager := newTestSessionManager()
	payments := &stubPayments{err: checkout.ErrEmptyCart}
	handler := CheckoutHandler{Payments: payments, Sessions: manager}

	token := bearerFor(t, manager, "buyer-1")
	rec := httptest.NewRecorder()

	handler.Pay(rec, checkoutRequest(t, token, "success"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestCheckoutHandlerUnknownOutcome(t *testing.T) {
	manager := newTestSessionManager()
	payments := &stubPayments{err: checkout.ErrUnknownOutcome}
	handler := CheckoutHandler{Payments: payments, Sessions: manager}

	token := bearerFor(t, manager, "buyer-1")
	rec := httptest.NewRecorder()

	handler.Pay(rec, checkoutRequest(t, token, "maybe"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestCheckoutHandlerCartChanged(t *testing.T) {
	manager := newTestSessionManager()
	payments := &stubPayments{err: &checkout.CartChangedError{
		Items:    []models.CartItem{{AssetID: "asset-1", PriceCents: 2000}},
		Removed:  []string{"asset-2"},
		Repriced: []string{"asset-1"},
	}}
	handler := CheckoutHandler{Payments: payments, Notifier: cart.NewNotifier(), Sessions: manager}

	token := bearerFor(t, manager, "buyer-1")
	rec := httptest.NewRecorder()

	handler.Pay(rec, checkoutRequest(t, token, "success"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	var resp cartChangedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.TotalCents != 2000 {
		t.Fatalf("expected the corrected cart in the response, got %+v", resp)
	}
	if len(resp.Removed) != 1 || len(resp.Repriced) != 1 {
		t.Fatalf("expected removed and repriced ids, got %+v", resp)
	}
}

func TestCheckoutHandlerRequiresSession(t *testing.T) {
	payments := &stubPayments{}
	handler := CheckoutHandler{Payments: payments, Sessions: newTestSessionManager()}

	body := strings.NewReader(`{"outcome": "success"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", body)
	rec := httptest.NewRecorder()

	handler.Pay(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
	if payments.calls != 0 {
		t.Fatal("expected no payment attempt without a session")
	}
}
