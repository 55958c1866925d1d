package extractors

import (
	"context"
	"errors"
	"testing"

	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/types"

	"github.com/kkdai/youtube/v2"
)

func newTestYouTube(calls *int) *YouTubeExtractor {
	return NewYouTubeExtractor(func() *youtube.Client {
		*calls++
		return &youtube.Client{}
	}, logging.New("error", false, nil))
}

func TestYouTubeExtractor_CanExtract(t *testing.T) {
	var calls int
	e := newTestYouTube(&calls)

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", true},
		{"music", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"soundcloud", "https://soundcloud.com/artist/track", false},
		{"lookalike", "https://youtube.com.example.org/watch?v=dQw4w9WgXcQ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CanExtract(tt.url); got != tt.expected {
				t.Errorf("CanExtract(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestYouTubeExtractor_Extract_InvalidID(t *testing.T) {
	var calls int
	e := newTestYouTube(&calls)

	_, err := e.Extract(context.Background(), "https://youtu.be/abc", interfaces.ExtractOptions{Format: "m4a"})
	if err == nil {
		t.Fatal("Extract() expected error for invalid video id")
	}
	if got := types.KindOf(err); got != types.ErrorKindUnsupportedSource {
		t.Errorf("KindOf() = %q, want unsupported_source", got)
	}
	if !errors.Is(err, types.ErrUnsupportedURL) {
		t.Errorf("error %v does not wrap ErrUnsupportedURL", err)
	}
}

func TestYouTubeExtractor_Recycle(t *testing.T) {
	var calls int
	e := newTestYouTube(&calls)
	before := e.current()

	if err := e.Recycle(); err != nil {
		t.Fatalf("Recycle() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("factory called %d times, want 2", calls)
	}
	if e.current() == before {
		t.Error("Recycle() kept the old client")
	}
}

func TestYouTubeCandidate(t *testing.T) {
	tests := []struct {
		name        string
		format      youtube.Format
		wantExt     string
		wantAudio   bool
		wantOnly    bool
		wantBitrate float64
	}{
		{
			name:        "m4a audio",
			format:      youtube.Format{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AverageBitrate: 129000, AudioChannels: 2},
			wantExt:     "m4a",
			wantAudio:   true,
			wantOnly:    true,
			wantBitrate: 129,
		},
		{
			name:        "opus audio",
			format:      youtube.Format{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000, AudioChannels: 2},
			wantExt:     "webm",
			wantAudio:   true,
			wantOnly:    true,
			wantBitrate: 160,
		},
		{
			name:        "muxed mp4",
			format:      youtube.Format{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Bitrate: 500000, AudioChannels: 2},
			wantExt:     "mp4",
			wantAudio:   true,
			wantOnly:    false,
			wantBitrate: 500,
		},
		{
			name:        "video only",
			format:      youtube.Format{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Bitrate: 4000000},
			wantExt:     "mp4",
			wantAudio:   false,
			wantOnly:    false,
			wantBitrate: 4000,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := youtubeCandidate(&tt.format, i)
			if c.Ext != tt.wantExt {
				t.Errorf("Ext = %q, want %q", c.Ext, tt.wantExt)
			}
			if c.hasAudio() != tt.wantAudio {
				t.Errorf("hasAudio() = %v, want %v", c.hasAudio(), tt.wantAudio)
			}
			if c.audioOnly() != tt.wantOnly {
				t.Errorf("audioOnly() = %v, want %v", c.audioOnly(), tt.wantOnly)
			}
			if c.Bitrate != tt.wantBitrate {
				t.Errorf("Bitrate = %v, want %v", c.Bitrate, tt.wantBitrate)
			}
			if c.index != i {
				t.Errorf("index = %d, want %d", c.index, i)
			}
		})
	}
}

func TestYouTubeCandidate_OpusPreference(t *testing.T) {
	formats := []youtube.Format{
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 120000, AudioChannels: 2},
	}

	tests := []struct {
		pref     string
		wantItag string
	}{
		{"opus", "251"},
		{"webm", "251"},
		{"m4a", "140"},
	}
	for _, tt := range tests {
		candidates := make([]audioCandidate, len(formats))
		for i := range formats {
			candidates[i] = youtubeCandidate(&formats[i], i)
		}
		got, ok := selectAudio(candidates, tt.pref)
		if !ok || got.ID != tt.wantItag {
			t.Errorf("selectAudio(pref=%q) = itag %q, want %q", tt.pref, got.ID, tt.wantItag)
		}
	}
}
