// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Extractor preferences for YouTube URLs.
const (
	ExtractorYtDlp  = "yt-dlp"
	ExtractorNative = "native"
)

// Config holds all application configuration. It is built once at startup
// and must not be mutated afterwards.
type Config struct {
	// Server settings
	Host        string
	Port        int
	ReadTimeout time.Duration
	IdleTimeout time.Duration

	// Worker model
	RequestTimeout time.Duration
	Workers        int
	MaxRequests    int

	// Extraction
	YtDlpPath          string
	FFmpegPath         string
	PlayerClients      []string
	PreferredExtractor string
	AllowedHosts       []string

	// Outbound HTTP
	GlobalProxies      []string
	TransportRoutes    []TransportRoute
	ImpersonateDomains []string

	// Logging
	LogLevel string
	LogJSON  bool

	// Tracing
	OTLPEndpoint string
	OTLPHeaders  map[string]string
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// environment mirrors the recognized variables. Several settings accept a
// gunicorn-era name and a plain name; the plain one wins when set.
type environment struct {
	Host        string        `env:"HOST" envDefault:"0.0.0.0"`
	Port        int           `env:"PORT" envDefault:"5000"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`

	GunicornTimeout     int `env:"GUNICORN_TIMEOUT" envDefault:"600"`
	RequestTimeout      int `env:"REQUEST_TIMEOUT"`
	GunicornWorkers     int `env:"GUNICORN_WORKERS" envDefault:"2"`
	Workers             int `env:"WORKERS"`
	GunicornMaxRequests int `env:"GUNICORN_MAX_REQUESTS"`
	MaxRequests         int `env:"MAX_REQUESTS"`

	YtDlpPath     string   `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath    string   `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	PlayerClients []string `env:"YTDLP_PLAYER_CLIENTS" envDefault:"ios,android,web" envSeparator:","`
	Extractor     string   `env:"EXTRACTOR" envDefault:"yt-dlp"`
	AllowedHosts  []string `env:"ALLOWED_HOSTS" envSeparator:","`

	GlobalProxies      []string `env:"GLOBAL_PROXIES" envSeparator:","`
	GlobalProxy        string   `env:"GLOBAL_PROXY"`
	TransportRoutes    string   `env:"TRANSPORT_ROUTES"`
	ImpersonateDomains []string `env:"IMPERSONATE_DOMAINS" envDefault:"youtube.com,youtu.be,googlevideo.com" envSeparator:","`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders  string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads configuration from the given variables, or from the process
// environment when vars is nil.
func LoadFrom(vars map[string]string) (*Config, error) {
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}

	var e environment
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg := &Config{
		Host:               e.Host,
		Port:               e.Port,
		ReadTimeout:        e.ReadTimeout,
		IdleTimeout:        e.IdleTimeout,
		RequestTimeout:     time.Duration(firstPositive(e.RequestTimeout, e.GunicornTimeout)) * time.Second,
		Workers:            firstPositive(e.Workers, e.GunicornWorkers),
		MaxRequests:        firstPositive(e.MaxRequests, e.GunicornMaxRequests),
		YtDlpPath:          e.YtDlpPath,
		FFmpegPath:         e.FFmpegPath,
		PlayerClients:      cleanList(e.PlayerClients),
		PreferredExtractor: strings.ToLower(strings.TrimSpace(e.Extractor)),
		AllowedHosts:       cleanList(e.AllowedHosts),
		GlobalProxies:      cleanList(e.GlobalProxies),
		TransportRoutes:    parseTransportRoutes(e.TransportRoutes),
		ImpersonateDomains: cleanList(e.ImpersonateDomains),
		LogLevel:           e.LogLevel,
		LogJSON:            e.LogJSON,
		OTLPEndpoint:       strings.TrimSpace(e.OTLPEndpoint),
		OTLPHeaders:        parseHeaders(e.OTLPHeaders),
	}

	// Legacy single proxy support
	if e.GlobalProxy != "" && len(cfg.GlobalProxies) == 0 {
		cfg.GlobalProxies = []string{e.GlobalProxy}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	switch c.PreferredExtractor {
	case ExtractorYtDlp, ExtractorNative:
	default:
		return fmt.Errorf("unknown EXTRACTOR %q (want %q or %q)", c.PreferredExtractor, ExtractorYtDlp, ExtractorNative)
	}
	return nil
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	// Split by "}, {" pattern
	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		fields := strings.Split(part, ", ")
		for _, field := range fields {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)

			switch strings.ToUpper(key) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.EqualFold(value, "true")
			case "DIRECT":
				route.Direct = strings.EqualFold(value, "true")
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

// parseHeaders parses the OTLP "k=v,k=v" header list.
func parseHeaders(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	headers := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		key, val, _ := strings.Cut(pair, "=")
		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(val)
		}
	}
	return headers
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
