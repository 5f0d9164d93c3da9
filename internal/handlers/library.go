package handlers

import (
	"errors"
	"net/http"

	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/repositories"
)

// LibraryHandler exposes the caller's purchased assets.
type LibraryHandler struct {
	Library  LibraryStore
	Assets   AssetStore
	Sessions SessionManager
}

// List handles GET /api/v1/library: every purchased asset that still exists.
func (h LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	items, err := h.Library.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list library", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load library"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// Download handles GET /api/v1/library/{assetID}/download: the entitlement
// check happens here, against the library table, before the caller is sent to
// the file.
func (h LibraryHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
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
	owned, err := h.Library.Has(ctx, userID, assetID)
	if err != nil {
		logger.Error("check entitlement", "userId", userID, "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify purchase"})
		return
	}
	if !owned {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "asset has not been purchased"})
		return
	}

	asset, err := h.Assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Purchased, but the seller deleted the listing since.
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset is no longer available"})
			return
		}
		logger.Error("load purchased asset", "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load asset"})
		return
	}

	http.Redirect(w, r, asset.FileURL, http.StatusFound)
}
