package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"audio-extract-go/pkg/config"
	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/registry"
	"audio-extract-go/pkg/tracing"
	"audio-extract-go/pkg/types"
	"audio-extract-go/pkg/urlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Validation messages returned to callers verbatim.
const (
	MsgURLRequired    = "url parameter is required"
	MsgHostNotAllowed = "url host is not allowed"
)

// ExtractionService resolves requests through the extractor registry, one
// worker slot per extraction.
type ExtractionService struct {
	registry     *registry.ExtractorRegistry
	pool         *Pool
	timeout      time.Duration
	allowedHosts []string
	tracer       trace.Tracer
	log          *logging.Logger
}

// NewExtractionService creates the service. Recycling goes through reg.
func NewExtractionService(cfg *config.Config, reg *registry.ExtractorRegistry, log *logging.Logger) *ExtractionService {
	return &ExtractionService{
		registry:     reg,
		pool:         NewPool(cfg.Workers, cfg.MaxRequests, reg.Recycle, log),
		timeout:      cfg.RequestTimeout,
		allowedHosts: cfg.AllowedHosts,
		tracer:       otel.Tracer("audio-extract-go/services"),
		log:          log.WithComponent("extraction"),
	}
}

// Stats returns the worker pool counters.
func (s *ExtractionService) Stats() PoolStats {
	return s.pool.Stats()
}

type outcome struct {
	meta *types.Metadata
	err  error
}

// Resolve runs a single extraction attempt bounded by the service timeout.
// The caller stops waiting at the deadline; the slot stays taken until the
// extractor itself returns.
func (s *ExtractionService) Resolve(ctx context.Context, req types.ExtractionRequest) (meta *types.Metadata, err error) {
	ctx, span := s.tracer.Start(ctx, "extract", trace.WithAttributes(
		attribute.String("extract.url", logging.TruncateURL(req.URL)),
		attribute.String("extract.format", req.Format),
	))
	defer func() { tracing.End(span, &err) }()

	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, types.Errorf(types.ErrorKindInvalidRequest, MsgURLRequired)
	}
	if len(s.allowedHosts) > 0 && !urlutil.MatchHost(rawURL, s.allowedHosts) {
		return nil, types.Errorf(types.ErrorKindInvalidRequest, MsgHostNotAllowed)
	}
	format := req.Format
	if format == "" {
		format = types.DefaultFormat
	}

	extractor := s.registry.Get(rawURL)
	if extractor == nil {
		return nil, types.Errorf(types.ErrorKindExtractionFailed, "no extractor available")
	}
	span.SetAttributes(attribute.String("extract.extractor", extractor.Name()))

	log := logging.FromContext(ctx).WithURL(rawURL).With("extractor", extractor.Name())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.pool.Acquire(ctx); err != nil {
		log.Warn("no worker slot before deadline", "timeout", s.timeout)
		return nil, err
	}

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer s.pool.Release()
		m, err := extractor.Extract(ctx, rawURL, interfaces.ExtractOptions{Format: format})
		done <- outcome{meta: m, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			err := s.classify(ctx, out.err)
			log.WithError(out.err).Warn("extraction failed", "kind", types.KindOf(err), "elapsed", time.Since(start))
			return nil, err
		}
		if out.meta == nil || out.meta.AudioURL == "" {
			return nil, types.Errorf(types.ErrorKindExtractionFailed, "no audio url returned")
		}
		if out.meta.Extractor == "" {
			out.meta.Extractor = extractor.Name()
		}
		log.Info("extraction completed",
			"title", out.meta.Title,
			"duration_s", out.meta.Duration,
			"audio_host", urlutil.GetSchemeHost(out.meta.AudioURL),
			"elapsed", time.Since(start),
		)
		return out.meta, nil
	case <-ctx.Done():
		log.Warn("extraction abandoned at deadline", "elapsed", time.Since(start))
		return nil, s.classify(ctx, ctx.Err())
	}
}

// classify maps an extractor or context error onto an ExtractionError.
func (s *ExtractionService) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &types.ExtractionError{
			Kind:    types.ErrorKindTimeout,
			Message: fmt.Sprintf("extraction timed out after %s", s.timeout),
			Err:     err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &types.ExtractionError{Kind: types.ErrorKindExtractionFailed, Message: "request canceled", Err: err}
	}

	var ee *types.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return types.NewExtractionError(types.ErrorKindExtractionFailed, err)
}

var _ interfaces.Resolver = (*ExtractionService)(nil)
