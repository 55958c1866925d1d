package extractors

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/types"
	"audio-extract-go/pkg/urlutil"

	"github.com/kkdai/youtube/v2"
)

// NativeYouTubeName identifies the native YouTube extractor.
const NativeYouTubeName = "native-youtube"

// ClientFactory builds a fresh YouTube client.
type ClientFactory func() *youtube.Client

// YouTubeExtractor resolves YouTube URLs in-process, without spawning yt-dlp.
type YouTubeExtractor struct {
	*BaseExtractor
	newClient ClientFactory

	mu     sync.RWMutex
	client *youtube.Client
}

// NewYouTubeExtractor creates a new native YouTube extractor.
func NewYouTubeExtractor(newClient ClientFactory, log *logging.Logger) *YouTubeExtractor {
	return &YouTubeExtractor{
		BaseExtractor: NewBaseExtractor(log.WithComponent("youtube-extractor")),
		newClient:     newClient,
		client:        newClient(),
	}
}

// Name returns the extractor name.
func (e *YouTubeExtractor) Name() string {
	return NativeYouTubeName
}

// CanExtract returns true for YouTube watch, short and music URLs.
func (e *YouTubeExtractor) CanExtract(url string) bool {
	return urlutil.IsYouTube(url)
}

// Recycle replaces the client, dropping its cached player state.
func (e *YouTubeExtractor) Recycle() error {
	fresh := e.newClient()
	e.mu.Lock()
	e.client = fresh
	e.mu.Unlock()
	e.log.Debug("youtube client recycled")
	return nil
}

func (e *YouTubeExtractor) current() *youtube.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Extract resolves a YouTube URL to its best audio stream.
func (e *YouTubeExtractor) Extract(ctx context.Context, url string, opts interfaces.ExtractOptions) (*types.Metadata, error) {
	if _, err := youtube.ExtractVideoID(url); err != nil {
		return nil, &types.ExtractionError{
			Kind:    types.ErrorKindUnsupportedSource,
			Message: fmt.Sprintf("unsupported YouTube URL: %v", err),
			Err:     fmt.Errorf("%w: %w", types.ErrUnsupportedURL, err),
		}
	}

	client := e.current()
	e.log.Debug("extracting with native client", "url", logging.TruncateURL(url), "format", opts.Format)

	video, err := client.GetVideoContext(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewExtractionError(types.ErrorKindExtractionFailed, fmt.Errorf("fetching video: %w", err))
	}

	formats := make([]audioCandidate, 0, len(video.Formats))
	for i := range video.Formats {
		formats = append(formats, youtubeCandidate(&video.Formats[i], i))
	}

	chosen, ok := selectAudio(formats, opts.Format)
	if !ok {
		return nil, types.NewExtractionError(types.ErrorKindExtractionFailed, errNoAudio)
	}

	streamURL, err := client.GetStreamURLContext(ctx, video, &video.Formats[chosen.index])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewExtractionError(types.ErrorKindExtractionFailed, fmt.Errorf("resolving stream url: %w", err))
	}
	if streamURL == "" {
		return nil, types.NewExtractionError(types.ErrorKindExtractionFailed, errors.New("empty stream url"))
	}

	return &types.Metadata{
		AudioURL:  streamURL,
		Title:     titleOrUnknown(video.Title),
		Duration:  int(video.Duration / time.Second),
		Extension: chosen.Ext,
		Bitrate:   chosen.Bitrate,
		Extractor: NativeYouTubeName,
	}, nil
}

// youtubeCandidate maps a YouTube format onto the shared selection model.
// The stream URL is resolved later, only for the chosen format.
func youtubeCandidate(f *youtube.Format, index int) audioCandidate {
	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		mediaType = strings.ToLower(f.MimeType)
	}
	major, sub, _ := strings.Cut(mediaType, "/")

	var acodec, vcodec string
	for _, codec := range strings.Split(params["codecs"], ",") {
		codec = strings.TrimSpace(codec)
		switch {
		case codec == "":
		case isAudioCodec(codec):
			acodec = codec
		default:
			vcodec = codec
		}
	}
	if major == "audio" {
		vcodec = "none"
		if acodec == "" {
			acodec = sub
		}
	} else if acodec == "" && f.AudioChannels > 0 {
		acodec = "unknown"
	}
	if acodec == "" {
		acodec = "none"
	}

	bitrate := f.AverageBitrate
	if bitrate == 0 {
		bitrate = f.Bitrate
	}

	return audioCandidate{
		ID:      fmt.Sprintf("%d", f.ItagNo),
		Ext:     extensionFor(major, sub),
		ACodec:  acodec,
		VCodec:  vcodec,
		Bitrate: float64(bitrate) / 1000,
		index:   index,
	}
}

func isAudioCodec(codec string) bool {
	for _, prefix := range []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "flac"} {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}

// extensionFor names the container the way yt-dlp does.
func extensionFor(major, sub string) string {
	switch {
	case major == "audio" && sub == "mp4":
		return "m4a"
	case sub == "":
		return major
	default:
		return sub
	}
}

var (
	_ interfaces.Extractor = (*YouTubeExtractor)(nil)
	_ interfaces.Recycler  = (*YouTubeExtractor)(nil)
)
