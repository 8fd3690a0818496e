package services

import "errors"

// Upload pipeline error taxonomy. Thumbnail failures are deliberately absent:
// they are logged and reduced to a null thumbnail path, never surfaced.
var (
	// ErrValidation: size or type outside the allow-list, detected before any
	// network call. Never retried.
	ErrValidation = errors.New("upload validation failed")

	// ErrUploadTransport: the primary asset write to object storage failed.
	// Fatal for the file; no metadata row is written.
	ErrUploadTransport = errors.New("asset upload failed")

	// ErrEntityResolution: hierarchy lookup/insert failed even after the
	// single race retry.
	ErrEntityResolution = errors.New("hierarchy resolution failed")

	// ErrMetadataPersistence: the instance row insert failed after a
	// successful asset upload.
	ErrMetadataPersistence = errors.New("instance metadata write failed")

	// ErrUploadCanceled: the batch context was canceled before this file
	// started. A distinct terminal state, not a failure.
	ErrUploadCanceled = errors.New("upload canceled")

	// Deletion cascade partial-failure markers, so callers can retry the
	// specific remaining step.
	ErrObjectUndeleted   = errors.New("stored object not deleted")
	ErrMetadataUndeleted = errors.New("instance metadata not deleted")
)
