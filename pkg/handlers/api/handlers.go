// Package api provides HTTP handlers for the extraction API.
package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"audio-extract-go/pkg/appctx"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/services"
	"audio-extract-go/pkg/types"
)

// MsgInvalidFormat is returned for a format outside formatPattern.
const MsgInvalidFormat = "invalid format parameter"

var formatPattern = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHealth)
	mux.HandleFunc("GET /extract", h.handleExtract)
	mux.HandleFunc("GET /api/info", h.handleAPIInfo)
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// handleHealth answers liveness probes without touching any dependency.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "alive",
		Service: appctx.ServiceName,
		Version: appctx.Version,
	})
}

func (h *Handlers) handleExtract(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	rawURL := strings.TrimSpace(query.Get("url"))
	if rawURL == "" {
		h.writeError(w, http.StatusBadRequest, services.MsgURLRequired)
		return
	}

	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" {
		format = types.DefaultFormat
	}
	if !formatPattern.MatchString(format) {
		h.writeError(w, http.StatusBadRequest, MsgInvalidFormat)
		return
	}

	log := logging.FromContext(r.Context())
	log.Debug("extract request", "url", logging.TruncateURL(rawURL), "format", format)

	meta, err := h.ctx.Resolver.Resolve(r.Context(), types.ExtractionRequest{URL: rawURL, Format: format})
	if err != nil {
		kind := types.KindOf(err)
		log.WithError(err).Error("extract request failed", "url", logging.TruncateURL(rawURL), "kind", kind)
		h.writeError(w, kind.HTTPStatus(), errorMessage(err))
		return
	}

	h.writeJSON(w, http.StatusOK, types.Succeeded(meta))
}

type infoResponse struct {
	Service    string              `json:"service"`
	Version    string              `json:"version"`
	Extractors []string            `json:"extractors"`
	Preferred  string              `json:"preferred_extractor"`
	TimeoutSec float64             `json:"timeout_seconds"`
	Workers    *services.PoolStats `json:"workers,omitempty"`
	Toolchain  *services.Toolchain `json:"toolchain,omitempty"`
}

func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	cfg := h.ctx.Config
	resp := infoResponse{
		Service:    appctx.ServiceName,
		Version:    appctx.Version,
		Extractors: []string{},
		Preferred:  cfg.PreferredExtractor,
		TimeoutSec: cfg.RequestTimeout.Seconds(),
		Toolchain:  h.ctx.Toolchain,
	}
	if h.ctx.Registry != nil {
		resp.Extractors = h.ctx.Registry.Names()
	}
	if h.ctx.Pool != nil {
		stats := h.ctx.Pool.Stats()
		resp.Workers = &stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// errorMessage never returns an empty string so failures always carry text.
func errorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return string(types.KindOf(err))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to write response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, types.Failed(message))
}
