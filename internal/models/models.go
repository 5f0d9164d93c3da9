package models

import "time"

// User represents an account within the AssetsHive marketplace.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Asset is a purchasable digital file listing owned by a seller.
type Asset struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	AuthorName  string    `json:"authorName,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	FileURL     string    `json:"fileUrl"`
	FileType    string    `json:"fileType"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	FileTypeImage     = "image"
	FileTypeAnimation = "animation"
)

// LibraryEntry grants a user durable download access to a purchased asset.
// Entries are only ever created; there is no refund or revocation path.
type LibraryEntry struct {
	UserID    string    `json:"userId"`
	AssetID   string    `json:"assetId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CartItem is an add-time snapshot of an asset held in a user's cart. The
// snapshot can drift from the live listing; checkout revalidates it.
type CartItem struct {
	AssetID    string    `json:"assetId"`
	Title      string    `json:"title"`
	AuthorName string    `json:"authorName,omitempty"`
	PriceCents int64     `json:"priceCents"`
	FileURL    string    `json:"fileUrl"`
	FileType   string    `json:"fileType"`
	AddedAt    time.Time `json:"addedAt"`
}

// SnapshotOf copies the cart-relevant fields of an asset.
func SnapshotOf(asset Asset, now time.Time) CartItem {
	return CartItem{
		AssetID:    asset.ID,
		Title:      asset.Title,
		AuthorName: asset.AuthorName,
		PriceCents: asset.PriceCents,
		FileURL:    asset.FileURL,
		FileType:   asset.FileType,
		AddedAt:    now,
	}
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
