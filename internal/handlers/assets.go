package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/assetshive/backend/internal/assets"
	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/models"
	"github.com/assetshive/backend/internal/repositories"
)

// GalleryPageSize is the fixed number of listings per public gallery page.
const GalleryPageSize = 8

// AssetHandler exposes the public galleries and the seller asset lifecycle.
type AssetHandler struct {
	Assets    AssetStore
	Lifecycle AssetLifecycle
	Users     UserStore
	Sessions  SessionManager
	MaxUpload int64
}

// HandleCollection dispatches /api/v1/assets: GET lists a gallery page,
// POST uploads new listings.
func (h AssetHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listGallery(w, r)
	case http.MethodPost:
		h.upload(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// listGallery serves one page of active listings filtered by file type,
// newest first. Out-of-range pages are rejected so the displayed content
// never silently changes.
func (h AssetHandler) listGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	fileType := r.URL.Query().Get("type")
	if fileType != models.FileTypeImage && fileType != models.FileTypeAnimation {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "type must be image or animation"})
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "page must be a number"})
			return
		}
		page = parsed
	}
	if page < 1 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "page is out of range"})
		return
	}

	items, total, err := h.Assets.ListPublic(ctx, fileType, page, GalleryPageSize)
	if err != nil {
		logger.Error("list gallery", "type", fileType, "page", page, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load gallery"})
		return
	}

	pageCount := (total + GalleryPageSize - 1) / GalleryPageSize
	if total > 0 && page > pageCount {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "page is out of range"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, galleryResponse{
		Items:     items,
		Total:     total,
		Page:      page,
		PageCount: pageCount,
	})
}

func (h AssetHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	maxUpload := h.MaxUpload
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		logger.Warn("invalid upload form", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form or file too large"})
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "at least one file is required"})
		return
	}

	priceCents := int64(0)
	if raw := strings.TrimSpace(r.FormValue("priceCents")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "priceCents must be a non-negative integer"})
			return
		}
		priceCents = parsed
	}

	authorName := ""
	if user, err := h.Users.FindByID(ctx, userID); err == nil {
		authorName = user.DisplayName
	} else {
		logger.Warn("load uploader profile", "userId", userID, "error", err)
	}

	uploads := make([]assets.Upload, 0, len(files))
	openers := make([]multipart.File, 0, len(files))
	defer func() {
		for _, f := range openers {
			_ = f.Close()
		}
	}()

	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			logger.Error("open uploaded file", "filename", header.Filename, "error", err)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unable to read uploaded file"})
			return
		}
		openers = append(openers, file)

		uploads = append(uploads, assets.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Title:       strings.TrimSpace(r.FormValue("title")),
			Description: strings.TrimSpace(r.FormValue("description")),
			PriceCents:  priceCents,
			Content:     file,
		})
	}

	results := h.Lifecycle.UploadBatch(ctx, userID, authorName, uploads)

	payload := uploadResponse{Results: make([]uploadResult, len(results))}
	allOK := true
	for i, result := range results {
		entry := uploadResult{Filename: result.Filename}
		if result.Err != nil {
			allOK = false
			entry.Stage = string(result.Stage)
			entry.Error = result.Err.Error()
		} else {
			asset := result.Asset
			entry.Asset = &asset
		}
		payload.Results[i] = entry
	}

	status := http.StatusCreated
	if !allOK {
		status = http.StatusMultiStatus
	}
	respondJSON(ctx, w, status, payload)
}

// Mine handles GET /api/v1/assets/mine: the owner's listings, hidden ones included.
func (h AssetHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	listings, err := h.Assets.ListByOwner(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list own assets", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load your products"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"items": listings, "total": len(listings)})
}

// HandleItem dispatches /api/v1/assets/{id}: GET detail, PATCH listing edit,
// DELETE two-phase removal.
func (h AssetHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.show(w, r)
	case http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// show requires a session: opening a detail view is gated server-side, not
// just by UI branching.
func (h AssetHandler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	asset, err := h.Assets.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
			return
		}
		logging.FromContext(ctx).Error("load asset", "assetId", r.PathValue("id"), "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load asset"})
		return
	}

	// Hidden listings stay visible to their owner only.
	if !asset.Active && asset.OwnerID != userID {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, asset)
}

func (h AssetHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req updateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid asset update payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title must not be empty"})
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "priceCents must be a non-negative integer"})
		return
	}

	assetID := r.PathValue("id")
	update := repositories.AssetUpdate{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Active:      req.Active,
	}

	if err := h.Assets.UpdateListing(ctx, assetID, userID, update); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
			return
		}
		logger.Error("update asset listing", "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update listing"})
		return
	}

	asset, err := h.Assets.FindByID(ctx, assetID)
	if err != nil {
		logger.Error("reload asset after update", "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "listing updated but could not be reloaded"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, asset)
}

func (h AssetHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := sessionUser(w, r, h.Sessions)
	if userID == "" {
		return
	}

	assetID := r.PathValue("id")
	asset, err := h.Assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "asset not found"})
			return
		}
		logger.Error("load asset for delete", "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load asset"})
		return
	}

	if asset.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "only the owner may delete a listing"})
		return
	}

	if err := h.Lifecycle.Delete(ctx, asset); err != nil {
		if errors.Is(err, assets.ErrPartiallyDeleted) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{
				"error": "the stored file was removed but the listing remains; retry the delete",
			})
			return
		}
		logger.Error("delete asset", "assetId", assetID, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to remove the stored file; the listing was not deleted"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "asset deleted"})
}

type galleryResponse struct {
	Items     []models.Asset `json:"items"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PageCount int            `json:"pageCount"`
}

type uploadResult struct {
	Filename string        `json:"filename"`
	Asset    *models.Asset `json:"asset,omitempty"`
	Stage    string        `json:"stage,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadResult `json:"results"`
}

type updateAssetRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"priceCents"`
	Active      *bool   `json:"isActive"`
}
