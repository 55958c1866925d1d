package extractors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"audio-extract-go/pkg/httpclient"
	"audio-extract-go/pkg/interfaces"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/types"

	"github.com/lrstanley/go-ytdlp"
)

const videoJSON = `{"id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","duration":212.091,"format_id":"140","ext":"m4a","acodec":"mp4a.40.2","vcodec":"none","abr":129.5,"url":"https://rr1---sn.googlevideo.com/videoplayback?itag=140"}`

const storyboardJSON = `{"id":"abc","title":"","duration":61,"url":"https://i.ytimg.com/sb/abc/storyboard3_L0/default.jpg","formats":[` +
	`{"format_id":"sb0","ext":"mhtml","acodec":"none","vcodec":"none","url":"https://i.ytimg.com/sb/abc/storyboard3_L0/M0.jpg"},` +
	`{"format_id":"251","ext":"webm","acodec":"opus","vcodec":"none","abr":160,"url":"https://cdn.example.com/251"},` +
	`{"format_id":"140","ext":"m4a","acodec":"mp4a.40.2","vcodec":"none","abr":129,"url":"https://cdn.example.com/140"}]}`

func newTestYtDlp(run runFunc) *YtDlpExtractor {
	e := NewYtDlpExtractor(YtDlpOptions{Executable: "yt-dlp"}, logging.New("error", false, nil))
	e.run = run
	return e
}

func stubRun(stdout, stderr string, err error) runFunc {
	return func(context.Context, *ytdlp.Command, ...string) (string, string, error) {
		return stdout, stderr, err
	}
}

func TestYtDlpExtractor_Extract(t *testing.T) {
	e := newTestYtDlp(stubRun("[info] downloading webpage\n"+videoJSON+"\n", "", nil))

	meta, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", interfaces.ExtractOptions{Format: "m4a"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.AudioURL != "https://rr1---sn.googlevideo.com/videoplayback?itag=140" {
		t.Errorf("AudioURL = %q", meta.AudioURL)
	}
	if meta.Title != "Never Gonna Give You Up" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Duration != 212 {
		t.Errorf("Duration = %d, want 212", meta.Duration)
	}
	if meta.Extractor != YtDlpName {
		t.Errorf("Extractor = %q", meta.Extractor)
	}
}

func TestYtDlpExtractor_Extract_StoryboardFallsBackToFormats(t *testing.T) {
	e := newTestYtDlp(stubRun(storyboardJSON, "", nil))

	meta, err := e.Extract(context.Background(), "https://youtu.be/abc", interfaces.ExtractOptions{Format: "m4a"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if meta.AudioURL != "https://cdn.example.com/140" {
		t.Errorf("AudioURL = %q, want the m4a format", meta.AudioURL)
	}
	if meta.Title != unknownTitle {
		t.Errorf("Title = %q, want %q", meta.Title, unknownTitle)
	}
	if meta.Duration != 61 {
		t.Errorf("Duration = %d", meta.Duration)
	}
}

func TestYtDlpExtractor_Extract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		run      runFunc
		wantKind types.ErrorKind
		wantMsg  string
	}{
		{
			name:     "unsupported url",
			run:      stubRun("", "WARNING: something\nERROR: Unsupported URL: https://example.com/\n", errors.New("exit status 1")),
			wantKind: types.ErrorKindUnsupportedSource,
			wantMsg:  "Unsupported URL: https://example.com/",
		},
		{
			name:     "private video",
			run:      stubRun("", "ERROR: [youtube] abc: Private video. Sign in if you've been granted access\n", errors.New("exit status 1")),
			wantKind: types.ErrorKindExtractionFailed,
			wantMsg:  "[youtube] abc: Private video. Sign in if you've been granted access",
		},
		{
			name:     "no stderr",
			run:      stubRun("", "", errors.New("exec: \"yt-dlp\": executable file not found in $PATH")),
			wantKind: types.ErrorKindExtractionFailed,
			wantMsg:  "exec: \"yt-dlp\": executable file not found in $PATH",
		},
		{
			name:     "playlist",
			run:      stubRun(`{"_type":"playlist","title":"mix"}`, "", nil),
			wantKind: types.ErrorKindUnsupportedSource,
			wantMsg:  "playlists are not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestYtDlp(tt.run)
			_, err := e.Extract(context.Background(), "https://example.com/", interfaces.ExtractOptions{Format: "m4a"})
			if err == nil {
				t.Fatal("Extract() expected error")
			}
			if got := types.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", got, tt.wantKind)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestYtDlpExtractor_Extract_UnsupportedWrapsSentinel(t *testing.T) {
	e := newTestYtDlp(stubRun("", "ERROR: Unsupported URL: x\n", errors.New("exit status 1")))
	_, err := e.Extract(context.Background(), "x", interfaces.ExtractOptions{})
	if !errors.Is(err, types.ErrUnsupportedURL) {
		t.Errorf("error %v does not wrap ErrUnsupportedURL", err)
	}
}

func TestYtDlpExtractor_Extract_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestYtDlp(stubRun("", "", errors.New("signal: killed")))
	_, err := e.Extract(ctx, "https://youtu.be/abc", interfaces.ExtractOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestParseYtDlpInfo_NoJSON(t *testing.T) {
	if _, err := parseYtDlpInfo("[info] nothing here\n"); err == nil {
		t.Error("parseYtDlpInfo() expected error for output without JSON")
	}
	if _, err := parseYtDlpInfo("{not json"); err == nil {
		t.Error("parseYtDlpInfo() expected error for malformed JSON")
	}
}

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"m4a", "bestaudio[ext=m4a]/bestaudio/best"},
		{"webm", "bestaudio[ext=webm]/bestaudio/best"},
		{"", "bestaudio/best"},
	}
	for _, tt := range tests {
		if got := FormatSelector(tt.ext); got != tt.want {
			t.Errorf("FormatSelector(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestYtDlpExtractor_IsFallbackOnly(t *testing.T) {
	e := newTestYtDlp(nil)
	if e.CanExtract("https://www.youtube.com/watch?v=dQw4w9WgXcQ") {
		t.Error("CanExtract() = true, want false for fallback extractor")
	}
	if e.Name() != YtDlpName {
		t.Errorf("Name() = %q", e.Name())
	}
}

// fakeYtDlp writes a yt-dlp stand-in that records its argv to argsFile. It
// prints videoJSON, or fails like yt-dlp for URLs containing "unsupported".
func fakeYtDlp(t *testing.T) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	dir := t.TempDir()
	bin = filepath.Join(dir, "yt-dlp")
	argsFile = filepath.Join(dir, "args")
	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
for a in "$@"; do last="$a"; done
case "$last" in
*unsupported*)
	echo "WARNING: falling back to generic extractor" >&2
	echo "ERROR: [generic] Unsupported URL: $last" >&2
	exit 1
	;;
esac
cat <<'EOF'
%s
EOF
`, argsFile, videoJSON)
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake binary: %v", err)
	}
	return bin, argsFile
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading recorded args: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// hasPair reports whether flag appears in args directly followed by value.
func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestYtDlpExtractor_Extract_CommandLine(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		format        string
		wantSelector  string
		wantClients   bool
		wantKind      types.ErrorKind
		wantErrSubstr string
	}{
		{
			name:         "youtube url gets player clients",
			url:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			format:       "m4a",
			wantSelector: "bestaudio[ext=m4a]/bestaudio/best",
			wantClients:  true,
		},
		{
			name:         "other site skips player clients",
			url:          "https://soundcloud.com/artist/track",
			format:       "webm",
			wantSelector: "bestaudio[ext=webm]/bestaudio/best",
		},
		{
			name:          "unsupported url",
			url:           "https://example.com/unsupported",
			format:        "m4a",
			wantSelector:  "bestaudio[ext=m4a]/bestaudio/best",
			wantKind:      types.ErrorKindUnsupportedSource,
			wantErrSubstr: "[generic] Unsupported URL: https://example.com/unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, argsFile := fakeYtDlp(t)
			e := NewYtDlpExtractor(YtDlpOptions{
				Executable:    bin,
				FFmpegPath:    "/opt/ffmpeg/bin",
				PlayerClients: []string{"ios", "web"},
				ProxyFor:      func(string) string { return "socks5://proxy.local:1080" },
			}, logging.New("error", false, nil))

			meta, err := e.Extract(context.Background(), tt.url, interfaces.ExtractOptions{Format: tt.format})

			if tt.wantKind != "" {
				if err == nil {
					t.Fatal("Extract() expected error")
				}
				if got := types.KindOf(err); got != tt.wantKind {
					t.Errorf("KindOf() = %q, want %q", got, tt.wantKind)
				}
				if !errors.Is(err, types.ErrUnsupportedURL) {
					t.Errorf("error %v does not wrap ErrUnsupportedURL", err)
				}
				if !strings.Contains(err.Error(), tt.wantErrSubstr) {
					t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.wantErrSubstr)
				}
			} else {
				if err != nil {
					t.Fatalf("Extract() error = %v", err)
				}
				if meta.Title != "Never Gonna Give You Up" || meta.Duration != 212 {
					t.Errorf("Extract() = %+v", meta)
				}
			}

			args := readArgs(t, argsFile)
			for _, flag := range []string{"--dump-json", "--no-playlist", "--no-warnings"} {
				if !slices.Contains(args, flag) {
					t.Errorf("args missing %s: %q", flag, args)
				}
			}
			pairs := [][2]string{
				{"--format", tt.wantSelector},
				{"--socket-timeout", "30"},
				{"--ffmpeg-location", "/opt/ffmpeg/bin"},
				{"--proxy", "socks5://proxy.local:1080"},
			}
			for _, h := range httpclient.HeaderArgs(httpclient.BrowserHeaders()) {
				pairs = append(pairs, [2]string{"--add-headers", h})
			}
			for _, p := range pairs {
				if !hasPair(args, p[0], p[1]) {
					t.Errorf("args missing %s %q: %q", p[0], p[1], args)
				}
			}

			gotClients := hasPair(args, "--extractor-args", "youtube:player_client=ios,web")
			if gotClients != tt.wantClients {
				t.Errorf("player clients passed = %v, want %v: %q", gotClients, tt.wantClients, args)
			}
			if last := args[len(args)-1]; last != tt.url {
				t.Errorf("last arg = %q, want the url %q", last, tt.url)
			}
		})
	}
}
