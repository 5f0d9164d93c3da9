package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/assetshive/backend/internal/db"
	"github.com/assetshive/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at, last_seen_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, user.ID, user.Email, user.Password, user.DisplayName, user.CreatedAt, user.UpdatedAt, user.LastSeenAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, display_name, created_at, updated_at, last_seen_at
        FROM users
        WHERE email = $1
    `, email)

	return scanUser(row, "select user by email")
}

// FindByID fetches a user by their identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, display_name, created_at, updated_at, last_seen_at
        FROM users
        WHERE id = $1
    `, id)

	return scanUser(row, "select user by id")
}

func scanUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt, &user.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, password_hash = $3, display_name = $4, updated_at = $5
        WHERE id = $1
    `, user.ID, user.Email, user.Password, user.DisplayName, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchLastSeen records a successful sign-in.
func (r *PostgresUserRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, at.UTC()); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// Delete removes a user record. Sessions, assets rows, the cart slot, and the
// user's own library entries cascade at the schema level.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresAssetRepository provides PostgreSQL-backed persistence for asset listings.
type PostgresAssetRepository struct {
	pool db.Pool
}

// NewPostgresAssetRepository constructs an asset repository backed by PostgreSQL.
func NewPostgresAssetRepository(pool db.Pool) *PostgresAssetRepository {
	return &PostgresAssetRepository{pool: pool}
}

const assetColumns = `id, owner_id, author_name, title, description, price_cents, file_url, file_type, is_active, created_at`

// Create persists a new asset listing.
func (r *PostgresAssetRepository) Create(ctx context.Context, asset models.Asset) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO assets (id, owner_id, author_name, title, description, price_cents, file_url, file_type, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, asset.ID, asset.OwnerID, asset.AuthorName, asset.Title, asset.Description, asset.PriceCents, asset.FileURL, asset.FileType, asset.Active, asset.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert asset: %w", err)
	}

	return nil
}

// FindByID fetches a single asset record.
func (r *PostgresAssetRepository) FindByID(ctx context.Context, id string) (models.Asset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Asset{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)

	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, ErrNotFound
		}
		return models.Asset{}, fmt.Errorf("select asset: %w", err)
	}
	return asset, nil
}

// FindMany fetches the requested assets keyed by id. Missing ids are absent
// from the result rather than an error; checkout treats them as deleted.
func (r *PostgresAssetRepository) FindMany(ctx context.Context, ids []string) (map[string]models.Asset, error) {
	if len(ids) == 0 {
		return map[string]models.Asset{}, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query assets by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Asset, len(ids))
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out[asset.ID] = asset
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	return out, nil
}

// ListPublic returns one page of active assets of the requested file type,
// newest first, along with the total count of matching records.
func (r *PostgresAssetRepository) ListPublic(ctx context.Context, fileType string, page, pageSize int) ([]models.Asset, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM assets WHERE file_type = $1 AND is_active = TRUE
    `, fileType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count public assets: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := conn.Query(ctx, `
        SELECT `+assetColumns+`
        FROM assets
        WHERE file_type = $1 AND is_active = TRUE
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, fileType, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query public assets: %w", err)
	}
	defer rows.Close()

	assets, err := collectAssets(rows)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// ListByOwner returns every listing owned by the user, active or not, newest first.
func (r *PostgresAssetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Asset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+assetColumns+`
        FROM assets
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query assets by owner: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// AssetUpdate carries the optional listing fields a seller may change. Nil
// fields keep their current value.
type AssetUpdate struct {
	Title       *string
	Description *string
	PriceCents  *int64
	Active      *bool
}

// UpdateListing applies the update to an asset the owner controls. The owner
// scope lives in the query itself, so a caller can never alter someone
// else's listing regardless of what the handler checked.
func (r *PostgresAssetRepository) UpdateListing(ctx context.Context, assetID, ownerID string, update AssetUpdate) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE assets
        SET title       = COALESCE($3, title),
            description = COALESCE($4, description),
            price_cents = COALESCE($5, price_cents),
            is_active   = COALESCE($6, is_active)
        WHERE id = $1 AND owner_id = $2
    `, assetID, ownerID, update.Title, update.Description, update.PriceCents, update.Active)
	if err != nil {
		return fmt.Errorf("update asset listing: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an asset record. Library entries referencing it are left in
// place; the library join simply stops returning them.
func (r *PostgresAssetRepository) Delete(ctx context.Context, assetID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM assets WHERE id = $1`, assetID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var asset models.Asset
	err := row.Scan(&asset.ID, &asset.OwnerID, &asset.AuthorName, &asset.Title, &asset.Description,
		&asset.PriceCents, &asset.FileURL, &asset.FileType, &asset.Active, &asset.CreatedAt)
	return asset, err
}

func collectAssets(rows pgx.Rows) ([]models.Asset, error) {
	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// PostgresLibraryRepository provides PostgreSQL-backed persistence for purchase entitlements.
type PostgresLibraryRepository struct {
	pool db.Pool
}

// NewPostgresLibraryRepository constructs a library repository backed by PostgreSQL.
func NewPostgresLibraryRepository(pool db.Pool) *PostgresLibraryRepository {
	return &PostgresLibraryRepository{pool: pool}
}

// AddEntries writes one entitlement per asset id inside a single transaction:
// either the whole purchase commits or none of it does. Already-owned assets
// are skipped rather than duplicated, which makes retries idempotent.
func (r *PostgresLibraryRepository) AddEntries(ctx context.Context, userID string, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin purchase transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, assetID := range assetIDs {
		if _, err := tx.Exec(ctx, `
            INSERT INTO user_library (user_id, asset_id, created_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (user_id, asset_id) DO NOTHING
        `, userID, assetID, now); err != nil {
			return fmt.Errorf("insert library entry %s: %w", assetID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit purchase transaction: %w", err)
	}

	return nil
}

// ListForUser joins entitlements to their asset records. Entries whose asset
// was deleted since purchase drop out of the join.
func (r *PostgresLibraryRepository) ListForUser(ctx context.Context, userID string) ([]models.Asset, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.owner_id, a.author_name, a.title, a.description, a.price_cents, a.file_url, a.file_type, a.is_active, a.created_at
        FROM user_library ul
        JOIN assets a ON a.id = ul.asset_id
        WHERE ul.user_id = $1
        ORDER BY ul.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query user library: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// Has reports whether the user holds an entitlement for the asset.
func (r *PostgresLibraryRepository) Has(ctx context.Context, userID, assetID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var owned bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM user_library WHERE user_id = $1 AND asset_id = $2)
    `, userID, assetID).Scan(&owned); err != nil {
		return false, fmt.Errorf("check library entry: %w", err)
	}

	return owned, nil
}

// PostgresCartStore persists each user's cart as a single JSONB slot that is
// read and rewritten as a whole on every mutation. There is no row locking;
// concurrent writers race last-writer-wins, which the cart tolerates.
type PostgresCartStore struct {
	pool db.Pool
}

// NewPostgresCartStore constructs a cart store backed by PostgreSQL.
func NewPostgresCartStore(pool db.Pool) *PostgresCartStore {
	return &PostgresCartStore{pool: pool}
}

// Add appends a snapshot unless the asset id is already present.
func (s *PostgresCartStore) Add(ctx context.Context, userID string, item models.CartItem) (bool, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, existing := range items {
		if existing.AssetID == item.AssetID {
			return false, nil
		}
	}

	if err := s.Replace(ctx, userID, append(items, item)); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the matching entry when present.
func (s *PostgresCartStore) Remove(ctx context.Context, userID, assetID string) error {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return err
	}

	for i, item := range items {
		if item.AssetID == assetID {
			return s.Replace(ctx, userID, append(items[:i:i], items[i+1:]...))
		}
	}
	return nil
}

// Items loads the full ordered snapshot list.
func (s *PostgresCartStore) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var raw []byte
	if err := conn.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1`, userID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return items, nil
}

// Replace rewrites the whole slot.
func (s *PostgresCartStore) Replace(ctx context.Context, userID string, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        INSERT INTO carts (user_id, items, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id)
        DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
    `, userID, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	return nil
}

// Clear empties the cart.
func (s *PostgresCartStore) Clear(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ AssetRepository = (*PostgresAssetRepository)(nil)
var _ LibraryRepository = (*PostgresLibraryRepository)(nil)
