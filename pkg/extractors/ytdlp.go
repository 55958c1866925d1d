package extractors

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"audio-extract-go/pkg/httpclient"
	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/types"
	"audio-extract-go/pkg/urlutil"

	"github.com/lrstanley/go-ytdlp"
)

// YtDlpName identifies the yt-dlp extractor in responses and logs.
const YtDlpName = "yt-dlp"

const socketTimeoutSeconds = 30

// unsupportedMarkers are yt-dlp error fragments caused by the caller's input.
var unsupportedMarkers = []string{
	"Unsupported URL",
	"is not a valid URL",
	"Incomplete YouTube ID",
}

// YtDlpOptions configures the yt-dlp extractor.
type YtDlpOptions struct {
	// Executable is the yt-dlp binary path.
	Executable string
	// FFmpegPath is passed to yt-dlp when non-empty.
	FFmpegPath string
	// PlayerClients are the YouTube player clients yt-dlp tries in order.
	PlayerClients []string
	// ProxyFor returns the proxy to use for a URL, or "".
	ProxyFor func(url string) string
}

// runFunc executes cmd with the trailing args and returns its stdout and
// stderr.
type runFunc func(ctx context.Context, cmd *ytdlp.Command, args ...string) (stdout, stderr string, err error)

// YtDlpExtractor resolves any site yt-dlp supports.
type YtDlpExtractor struct {
	*BaseExtractor
	opts YtDlpOptions
	run  runFunc
}

// NewYtDlpExtractor creates a new yt-dlp extractor.
func NewYtDlpExtractor(opts YtDlpOptions, log *logging.Logger) *YtDlpExtractor {
	return &YtDlpExtractor{
		BaseExtractor: NewBaseExtractor(log.WithComponent("ytdlp-extractor")),
		opts:          opts,
		run:           runYtDlp,
	}
}

func runYtDlp(ctx context.Context, cmd *ytdlp.Command, args ...string) (string, string, error) {
	res, err := cmd.Run(ctx, args...)
	if res == nil {
		return "", "", err
	}
	return res.Stdout, res.Stderr, err
}

// Name returns the extractor name.
func (e *YtDlpExtractor) Name() string {
	return YtDlpName
}

// CanExtract always returns false as yt-dlp is registered as the fallback.
func (e *YtDlpExtractor) CanExtract(url string) bool {
	return false
}

// FormatSelector builds the yt-dlp format selector for a preferred extension.
// yt-dlp falls back to its own best audio, then best overall.
func FormatSelector(preferExt string) string {
	if preferExt == "" {
		return "bestaudio/best"
	}
	return fmt.Sprintf("bestaudio[ext=%s]/bestaudio/best", preferExt)
}

// command assembles the yt-dlp invocation for one extraction. The returned
// args end with url and carry one --add-headers pair per browser header,
// since the builder keeps only the last AddHeaders value.
func (e *YtDlpExtractor) command(url, preferExt string) (*ytdlp.Command, []string) {
	cmd := ytdlp.New().
		DumpJSON().
		NoPlaylist().
		NoWarnings().
		Format(FormatSelector(preferExt)).
		SocketTimeout(socketTimeoutSeconds)

	if e.opts.Executable != "" {
		cmd = cmd.SetExecutable(e.opts.Executable)
	}
	if e.opts.FFmpegPath != "" {
		cmd = cmd.FFmpegLocation(e.opts.FFmpegPath)
	}
	if len(e.opts.PlayerClients) > 0 && urlutil.IsYouTube(url) {
		cmd = cmd.ExtractorArgs("youtube:player_client=" + strings.Join(e.opts.PlayerClients, ","))
	}
	if e.opts.ProxyFor != nil {
		if p := e.opts.ProxyFor(url); p != "" {
			cmd = cmd.Proxy(p)
		}
	}

	headers := httpclient.HeaderArgs(httpclient.BrowserHeaders())
	args := make([]string, 0, 2*len(headers)+1)
	for _, h := range headers {
		args = append(args, "--add-headers", h)
	}
	return cmd, append(args, url)
}

// Extract runs yt-dlp in metadata mode and normalizes its JSON output.
func (e *YtDlpExtractor) Extract(ctx context.Context, url string, opts interfaces.ExtractOptions) (*types.Metadata, error) {
	e.log.Debug("extracting with yt-dlp", "url", logging.TruncateURL(url), "format", opts.Format)

	cmd, args := e.command(url, opts.Format)
	stdout, stderr, err := e.run(ctx, cmd, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyYtDlpError(stderr, err)
	}

	info, err := parseYtDlpInfo(stdout)
	if err != nil {
		return nil, err
	}

	return info.metadata(opts.Format)
}

// ytdlpFormat is the subset of a yt-dlp format entry used for selection.
type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
}

// ytdlpInfo is the subset of `yt-dlp --dump-json` output this service reads.
type ytdlpInfo struct {
	ytdlpFormat
	ID       string        `json:"id"`
	Type     string        `json:"_type"`
	Title    string        `json:"title"`
	Duration float64       `json:"duration"`
	Formats  []ytdlpFormat `json:"formats"`
}

// parseYtDlpInfo reads the first JSON object from yt-dlp's stdout.
func parseYtDlpInfo(stdout string) (*ytdlpInfo, error) {
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info ytdlpInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("parsing yt-dlp output: %w", err)
		}
		return &info, nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading yt-dlp output: %w", err)
	}
	return nil, errors.New("yt-dlp returned no metadata")
}

func (f ytdlpFormat) candidate(i int) audioCandidate {
	return audioCandidate{
		ID:      f.FormatID,
		URL:     f.URL,
		Ext:     f.Ext,
		ACodec:  f.ACodec,
		VCodec:  f.VCodec,
		Bitrate: f.ABR,
		index:   i,
	}
}

// metadata picks the audio stream. yt-dlp's own selection (the top-level
// url) is used unless it is missing or points at an image.
func (info *ytdlpInfo) metadata(preferExt string) (*types.Metadata, error) {
	if info.Type == "playlist" {
		return nil, types.NewExtractionError(types.ErrorKindUnsupportedSource, errors.New("playlists are not supported"))
	}

	chosen := info.ytdlpFormat.candidate(-1)
	if chosen.URL == "" || urlutil.IsImageOrStoryboard(chosen.URL) {
		formats := make([]audioCandidate, 0, len(info.Formats))
		for i, f := range info.Formats {
			if f.URL == "" {
				continue
			}
			formats = append(formats, f.candidate(i))
		}
		var ok bool
		if chosen, ok = selectAudio(formats, preferExt); !ok {
			return nil, errNoAudio
		}
	}

	return &types.Metadata{
		AudioURL:  chosen.URL,
		Title:     titleOrUnknown(info.Title),
		Duration:  int(info.Duration),
		Extension: chosen.Ext,
		Bitrate:   chosen.Bitrate,
		Extractor: YtDlpName,
	}, nil
}

// classifyYtDlpError turns a failed run into an error carrying yt-dlp's own
// message.
func classifyYtDlpError(stderr string, runErr error) error {
	msg := lastErrorLine(stderr)
	if msg == "" {
		msg = runErr.Error()
	}

	for _, marker := range unsupportedMarkers {
		if strings.Contains(msg, marker) {
			return &types.ExtractionError{
				Kind:    types.ErrorKindUnsupportedSource,
				Message: msg,
				Err:     fmt.Errorf("%w: %w", types.ErrUnsupportedURL, runErr),
			}
		}
	}
	return &types.ExtractionError{Kind: types.ErrorKindExtractionFailed, Message: msg, Err: runErr}
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp's stderr without
// its prefix.
func lastErrorLine(stderr string) string {
	var last string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			last = strings.TrimSpace(rest)
		}
	}
	return last
}

var _ interfaces.Extractor = (*YtDlpExtractor)(nil)
