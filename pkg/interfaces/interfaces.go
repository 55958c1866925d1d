// Package interfaces defines the core abstractions for the extraction service.
// Extractors implement these interfaces so new resolution backends can be
// registered without touching the handler or service layers.
package interfaces

import (
	"context"

	"audio-extract-go/pkg/types"
)

// Extractor resolves a page URL to a direct audio stream URL and metadata.
//
// To add a new extractor:
// 1. Create a new file in pkg/extractors/
// 2. Implement this interface
// 3. Register it in the ExtractorRegistry (internal/app)
type Extractor interface {
	// Name returns a unique identifier for this extractor.
	Name() string

	// CanExtract returns true if this extractor can handle the given URL.
	CanExtract(url string) bool

	// Extract resolves the given URL. It performs a single attempt and
	// must return when ctx is done.
	Extract(ctx context.Context, url string, opts ExtractOptions) (*types.Metadata, error)

	// Close releases any resources held by the extractor.
	Close() error
}

// Recycler is implemented by extractors holding client state that should be
// rebuilt periodically.
type Recycler interface {
	Recycle() error
}

// ExtractOptions contains per-request extraction parameters.
type ExtractOptions struct {
	// Format is the preferred audio container, e.g. "m4a".
	Format string
}

// Resolver is the service-level entry point used by the HTTP handlers.
type Resolver interface {
	Resolve(ctx context.Context, req types.ExtractionRequest) (*types.Metadata, error)
}
