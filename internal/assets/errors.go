package assets

import "errors"

var (
	// ErrUnsupportedFileType indicates an upload whose MIME type is neither an image nor a video.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrInvalidPrice indicates a price that is negative or otherwise unusable.
	ErrInvalidPrice = errors.New("price must be a non-negative amount")
	// ErrPartiallyDeleted indicates the stored file was removed but the listing
	// record remains; retrying the delete completes the remainder.
	ErrPartiallyDeleted = errors.New("file removed but listing record remains")
	// ErrStorageUnavailable indicates the object store is not configured.
	ErrStorageUnavailable = errors.New("asset storage unavailable")
)
