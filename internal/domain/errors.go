package domain

import "errors"

var (
	// ErrMalformedMetadata means the metadata document could not be parsed
	// as the expected graph serialization. Fatal for that package.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrMissingMetadata means the archive has no metadata entry at the
	// conventional path. Surfaced to the caller as a client-input error.
	ErrMissingMetadata = errors.New("metadata entry not found in package")

	// ErrStoreUnavailable means a backing store could not be reached within
	// the initialization retry window.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnsupportedFormat means no text extractor is registered for a
	// rendition's file extension. Renditions hitting it are skipped.
	ErrUnsupportedFormat = errors.New("unsupported content format")
)
