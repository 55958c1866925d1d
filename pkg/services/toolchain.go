package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"audio-extract-go/pkg/config"
	"audio-extract-go/pkg/logging"
)

const probeTimeout = 10 * time.Second

// Tool describes one external binary the service shells out to.
type Tool struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Available bool   `json:"available"`
}

// Toolchain is the result of probing for yt-dlp and ffmpeg at startup.
type Toolchain struct {
	YtDlp  Tool `json:"yt_dlp"`
	FFmpeg Tool `json:"ffmpeg"`
}

// FFmpegLocation returns the ffmpeg path to hand to yt-dlp, or "".
func (t *Toolchain) FFmpegLocation() string {
	if t.FFmpeg.Available {
		return t.FFmpeg.Path
	}
	return ""
}

// ProbeToolchain resolves the configured binaries and records their versions.
// Missing binaries are logged, not fatal: native extraction still works.
func ProbeToolchain(ctx context.Context, cfg *config.Config, log *logging.Logger) *Toolchain {
	log = log.WithComponent("toolchain")

	t := &Toolchain{
		YtDlp:  probe(ctx, "yt-dlp", cfg.YtDlpPath, "--version"),
		FFmpeg: probe(ctx, "ffmpeg", cfg.FFmpegPath, "-version"),
	}

	for _, tool := range []Tool{t.YtDlp, t.FFmpeg} {
		if tool.Available {
			log.Info("found external tool", "name", tool.Name, "path", tool.Path, "version", tool.Version)
		} else {
			log.Warn("external tool not found", "name", tool.Name)
		}
	}
	return t
}

func probe(ctx context.Context, name, configured, versionFlag string) Tool {
	tool := Tool{Name: name}
	if configured == "" {
		configured = name
	}

	path, err := exec.LookPath(configured)
	if err != nil {
		return tool
	}
	tool.Path = path

	version, err := toolVersion(ctx, path, versionFlag)
	if err != nil {
		return tool
	}
	tool.Version = version
	tool.Available = true
	return tool
}

// toolVersion runs the binary with its version flag and returns the first
// line of output.
func toolVersion(ctx context.Context, path, flag string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, flag)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running %s %s: %w", path, flag, err)
	}

	first, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(first), nil
}
