package handlers

import (
	"net/http"

	"github.com/assetshive/backend/internal/cart"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Sessions       SessionManager
	Assets         AssetStore
	AssetLifecycle AssetLifecycle
	Library        LibraryStore
	Cart           cart.Store
	CartNotifier   CartNotifier
	Payments       PaymentProcessor
	AuthLimiter    RateLimiter
	MaxUpload      int64
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	account := AccountHandler{Users: deps.Users, Sessions: deps.Sessions}
	assets := AssetHandler{
		Assets:    deps.Assets,
		Lifecycle: deps.AssetLifecycle,
		Users:     deps.Users,
		Sessions:  deps.Sessions,
		MaxUpload: deps.MaxUpload,
	}
	carts := CartHandler{Cart: deps.Cart, Assets: deps.Assets, Notifier: deps.CartNotifier, Sessions: deps.Sessions}
	pay := CheckoutHandler{Payments: deps.Payments, Notifier: deps.CartNotifier, Sessions: deps.Sessions}
	library := LibraryHandler{Library: deps.Library, Assets: deps.Assets, Sessions: deps.Sessions}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/account", account.Handle)

	mux.HandleFunc("/api/v1/assets", assets.HandleCollection)
	mux.HandleFunc("/api/v1/assets/mine", assets.Mine)
	mux.HandleFunc("/api/v1/assets/{id}", assets.HandleItem)

	mux.HandleFunc("/api/v1/cart", carts.Handle)
	mux.HandleFunc("/api/v1/cart/items", carts.AddItem)
	mux.HandleFunc("/api/v1/cart/items/{assetID}", carts.RemoveItem)
	mux.HandleFunc("/api/v1/cart/events", carts.Events)

	mux.HandleFunc("/api/v1/checkout", pay.Pay)

	mux.HandleFunc("/api/v1/library", library.List)
	mux.HandleFunc("/api/v1/library/{assetID}/download", library.Download)
}
