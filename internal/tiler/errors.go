package tiler

import "errors"

// Error kinds returned by ResolveTile. Errors wrap one of these together with
// the underlying cause, so errors.Is also matches store.ErrNotFound and
// store.ErrAccessDenied where they apply.
var (
	// ErrInvalidGeometry rejects overlay descriptors no footprint can be
	// built from, including ones whose bounding box collapses.
	ErrInvalidGeometry = errors.New("invalid overlay geometry")

	// ErrInvalidTile rejects tile addresses outside the tile grid.
	ErrInvalidTile = errors.New("invalid tile address")

	// ErrSourceUnavailable means the store has no such image or refused the
	// read.
	ErrSourceUnavailable = errors.New("source image unavailable")

	// ErrDecodeFailure means the fetched bytes are not a decodable image.
	ErrDecodeFailure = errors.New("source image could not be decoded")
)
