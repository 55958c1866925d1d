// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"errors"
	"fmt"

	"audio-extract-go/pkg/appctx"
	"audio-extract-go/pkg/config"
	"audio-extract-go/pkg/extractors"
	"audio-extract-go/pkg/handlers/api"
	"audio-extract-go/pkg/httpclient"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/registry"
	"audio-extract-go/pkg/server"
	"audio-extract-go/pkg/services"
	"audio-extract-go/pkg/tracing"

	"github.com/kkdai/youtube/v2"
)

const serviceName = "audio-extract"

// App is the main application container.
type App struct {
	Ctx          *appctx.Context
	Server       *server.Server
	HTTPClient   *httpclient.Client
	ExtractorReg *registry.ExtractorRegistry
	Tracer       *tracing.Provider
}

// New creates and initializes the application from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize logger
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing audio extraction service",
		"addr", cfg.Addr(),
		"log_level", cfg.LogLevel,
		"extractor", cfg.PreferredExtractor,
	)

	tp, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint, cfg.OTLPHeaders)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	// Create application context
	appCtx := appctx.New(cfg, log)

	// Create HTTP client
	httpClient := httpclient.New(cfg, log)

	// Probe external binaries
	toolchain := services.ProbeToolchain(ctx, cfg, log)
	appCtx.WithToolchain(toolchain)

	// Register extractors
	extractorReg := registry.NewExtractorRegistry()
	registerExtractors(extractorReg, cfg, httpClient, toolchain, log)
	appCtx.WithRegistry(extractorReg)

	// Create extraction service
	svc := services.NewExtractionService(cfg, extractorReg, log)
	appCtx.WithResolver(svc).WithPool(svc)

	// Create HTTP server
	srv := server.New(cfg, log)

	// Create API handlers
	handlers := api.NewHandlers(appCtx)
	handlers.RegisterRoutes(srv.Router())

	return &App{
		Ctx:          appCtx,
		Server:       srv,
		HTTPClient:   httpClient,
		ExtractorReg: extractorReg,
		Tracer:       tp,
	}, nil
}

// Run starts the application and blocks until the server stops.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting audio extraction server", "addr", a.Ctx.Config.Addr())
	return a.Server.Start()
}

// Shutdown stops the server if it is still running, releases extractors and
// flushes pending spans.
func (a *App) Shutdown(ctx context.Context) error {
	a.Ctx.Log.Info("shutting down application")

	return errors.Join(
		a.Server.Shutdown(ctx),
		a.ExtractorReg.Close(),
		a.Tracer.Shutdown(ctx),
	)
}

// registerExtractors registers all URL extractors.
// Add new extractors here by:
// 1. Creating a new extractor in pkg/extractors/
// 2. Registering it below
func registerExtractors(
	reg *registry.ExtractorRegistry,
	cfg *config.Config,
	client *httpclient.Client,
	toolchain *services.Toolchain,
	log *logging.Logger,
) {
	// Native YouTube client, only when preferred over yt-dlp
	if cfg.PreferredExtractor == config.ExtractorNative {
		ytExtractor := extractors.NewYouTubeExtractor(func() *youtube.Client {
			return &youtube.Client{HTTPClient: client.HTTPClient(cfg.RequestTimeout)}
		}, log)
		reg.Register(ytExtractor)
	}

	ytdlpPath := cfg.YtDlpPath
	if toolchain.YtDlp.Available {
		ytdlpPath = toolchain.YtDlp.Path
	}

	// yt-dlp serves everything else
	ytdlpExtractor := extractors.NewYtDlpExtractor(extractors.YtDlpOptions{
		Executable:    ytdlpPath,
		FFmpegPath:    toolchain.FFmpegLocation(),
		PlayerClients: cfg.PlayerClients,
		ProxyFor:      client.ProxyFor,
	}, log)
	reg.SetFallback(ytdlpExtractor)

	log.Info("registered extractors", "extractors", reg.Names())
}
