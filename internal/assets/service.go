package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assetshive/backend/internal/logging"
	"github.com/assetshive/backend/internal/models"
)

// Storage abstracts the object store holding asset files.
type Storage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(publicURL string) (string, error)
}

// Records captures the persistence operations the lifecycle service needs.
type Records interface {
	Create(ctx context.Context, asset models.Asset) error
	Delete(ctx context.Context, assetID string) error
}

// Upload describes a single file submitted by a seller.
type Upload struct {
	Filename    string
	ContentType string
	Title       string
	Description string
	PriceCents  int64
	Content     io.Reader
}

// Stage names the pipeline step at which an upload failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
	StageRecord   Stage = "record"
)

// Result reports the outcome of one file's upload pipeline.
type Result struct {
	Filename string
	Asset    models.Asset
	Stage    Stage
	Err      error
}

// Service implements the seller asset lifecycle: upload, edit, delete.
type Service struct {
	Storage Storage
	Records Records
	Logger  *slog.Logger
	NowFunc func() time.Time
}

// UploadBatch runs each file's pipeline concurrently: store the bytes under a
// key namespaced by the owner, then insert the metadata record. Files already
// committed are never rolled back when a sibling fails; the per-file results
// tell the caller exactly which stage each file reached.
func (s *Service) UploadBatch(ctx context.Context, ownerID, authorName string, uploads []Upload) []Result {
	ctx, span := logging.StartSpan(ctx, "assets.upload_batch")
	defer span.End()

	results := make([]Result, len(uploads))

	var wg sync.WaitGroup
	wg.Add(len(uploads))
	for i := range uploads {
		go func(i int) {
			defer wg.Done()
			results[i] = s.uploadOne(ctx, ownerID, authorName, uploads[i])
		}(i)
	}
	wg.Wait()

	return results
}

func (s *Service) uploadOne(ctx context.Context, ownerID, authorName string, upload Upload) Result {
	result := Result{Filename: upload.Filename}
	logger := logging.FromContext(ctx)

	fileType, err := FileTypeFor(upload.ContentType)
	if err != nil {
		result.Stage, result.Err = StageValidate, err
		return result
	}
	if upload.PriceCents < 0 {
		result.Stage, result.Err = StageValidate, ErrInvalidPrice
		return result
	}
	if s.Storage == nil {
		result.Stage, result.Err = StageStore, ErrStorageUnavailable
		return result
	}

	key := objectKey(ownerID, upload.Filename)
	location, err := s.Storage.Save(ctx, key, upload.ContentType, upload.Content)
	if err != nil {
		logger.Error("store asset file", "ownerId", ownerID, "filename", upload.Filename, "error", err)
		result.Stage, result.Err = StageStore, err
		return result
	}

	now := s.now()
	asset := models.Asset{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AuthorName:  authorName,
		Title:       titleFor(upload),
		Description: upload.Description,
		PriceCents:  upload.PriceCents,
		FileURL:     location,
		FileType:    fileType,
		Active:      true,
		CreatedAt:   now,
	}

	if err := s.Records.Create(ctx, asset); err != nil {
		logger.Error("insert asset record", "ownerId", ownerID, "key", key, "error", err)
		result.Stage, result.Err = StageRecord, fmt.Errorf("insert asset record: %w", err)
		return result
	}

	result.Asset = asset
	return result
}

// Delete removes an asset in two phases: object first, record second. A storage
// failure aborts before the record delete so the listing stays visible; a
// record failure after the object is gone surfaces ErrPartiallyDeleted so the
// caller retries the remainder instead of assuming a rollback.
func (s *Service) Delete(ctx context.Context, asset models.Asset) error {
	ctx, span := logging.StartSpan(ctx, "assets.delete")
	defer span.End()

	logger := logging.FromContext(ctx)

	key, err := s.Storage.KeyFromURL(asset.FileURL)
	if err != nil {
		// Records written against a store we no longer recognize have nothing
		// left to clean up; fall through to the record delete.
		logger.Warn("asset file url not recognized, skipping storage removal", "assetId", asset.ID, "fileUrl", asset.FileURL)
	} else if err := s.Storage.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove asset file: %w", err)
	}

	if err := s.Records.Delete(ctx, asset.ID); err != nil {
		logger.Error("delete asset record after file removal", "assetId", asset.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrPartiallyDeleted, err)
	}

	return nil
}

// FileTypeFor maps an upload MIME type onto the asset file type enum.
func FileTypeFor(contentType string) (string, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.FileTypeImage, nil
	case strings.HasPrefix(mediaType, "video/"):
		return models.FileTypeAnimation, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, contentType)
	}
}

func objectKey(ownerID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s%s", ownerID, uuid.NewString(), ext)
}

func titleFor(upload Upload) string {
	if title := strings.TrimSpace(upload.Title); title != "" {
		return title
	}
	base := path.Base(upload.Filename)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
