// Package registry provides the extractor registry consulted for each request.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"audio-extract-go/pkg/interfaces"
)

// ExtractorRegistry manages URL extractors. Registered extractors are tried
// in order; the fallback serves every URL none of them claims.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors []interfaces.Extractor
	fallback   interfaces.Extractor
}

// NewExtractorRegistry creates a new extractor registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: make([]interfaces.Extractor, 0),
	}
}

// Register adds an extractor to the registry.
func (r *ExtractorRegistry) Register(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, extractor)
}

// SetFallback sets the fallback extractor used when no extractor matches.
func (r *ExtractorRegistry) SetFallback(extractor interfaces.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = extractor
}

// Get returns the appropriate extractor for the given URL, or nil when
// nothing matches and no fallback is set.
func (r *ExtractorRegistry) Get(url string) interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		if e.CanExtract(url) {
			return e
		}
	}
	return r.fallback
}

// All returns the registered extractors followed by the fallback.
func (r *ExtractorRegistry) All() []interfaces.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Extractor, len(r.extractors), len(r.extractors)+1)
	copy(result, r.extractors)
	if r.fallback != nil {
		result = append(result, r.fallback)
	}
	return result
}

// Names returns the names of all extractors in lookup order.
func (r *ExtractorRegistry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name()
	}
	return names
}

// Recycle rebuilds the state of every extractor that supports it.
func (r *ExtractorRegistry) Recycle() error {
	var errs []error
	for _, e := range r.All() {
		rc, ok := e.(interfaces.Recycler)
		if !ok {
			continue
		}
		if err := rc.Recycle(); err != nil {
			errs = append(errs, fmt.Errorf("recycling %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all registered extractors.
func (r *ExtractorRegistry) Close() error {
	var errs []error
	for _, e := range r.All() {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
