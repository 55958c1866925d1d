// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"audio-extract-go/pkg/config"
	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/registry"
	"audio-extract-go/pkg/services"
)

// Version is reported by the health and info endpoints.
const Version = "1.0.0"

// ServiceName is reported by the health endpoint.
const ServiceName = "yt-dlp audio extraction service"

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config    *config.Config
	Log       *logging.Logger
	Resolver  interfaces.Resolver
	Registry  *registry.ExtractorRegistry
	Pool      PoolStatser
	Toolchain *services.Toolchain
}

// PoolStatser reports worker pool counters.
type PoolStatser interface {
	Stats() services.PoolStats
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config: cfg,
		Log:    log,
	}
}

// WithResolver sets the extraction entry point.
func (c *Context) WithResolver(r interfaces.Resolver) *Context {
	c.Resolver = r
	return c
}

// WithRegistry sets the extractor registry.
func (c *Context) WithRegistry(r *registry.ExtractorRegistry) *Context {
	c.Registry = r
	return c
}

// WithPool sets the worker pool reporter.
func (c *Context) WithPool(p PoolStatser) *Context {
	c.Pool = p
	return c
}

// WithToolchain sets the probed external tools.
func (c *Context) WithToolchain(t *services.Toolchain) *Context {
	c.Toolchain = t
	return c
}
