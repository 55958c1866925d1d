// Package extractors provides extractor implementations that resolve a page
// URL to a direct audio stream URL.
//
// To add a new extractor:
// 1. Create a new file (e.g., myplatform.go)
// 2. Implement the Extractor interface
// 3. Register it in the registry (see internal/app)
package extractors

import (
	"errors"
	"sort"
	"strings"

	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/urlutil"
)

// unknownTitle is reported when the library returns no title.
const unknownTitle = "Unknown"

// errNoAudio is returned when no format carries a playable audio stream.
var errNoAudio = errors.New("no playable audio format found")

// BaseExtractor provides common functionality for extractors.
type BaseExtractor struct {
	log *logging.Logger
}

// NewBaseExtractor creates a new base extractor.
func NewBaseExtractor(log *logging.Logger) *BaseExtractor {
	return &BaseExtractor{log: log}
}

// Close releases resources.
func (b *BaseExtractor) Close() error {
	return nil
}

// audioCandidate is a library format reduced to what selection needs.
type audioCandidate struct {
	ID      string
	URL     string
	Ext     string
	ACodec  string
	VCodec  string
	Bitrate float64 // kbps
	index   int     // position in the library's own format list
}

func (c audioCandidate) hasAudio() bool {
	return c.ACodec != "" && c.ACodec != "none"
}

func (c audioCandidate) audioOnly() bool {
	return c.hasAudio() && (c.VCodec == "" || c.VCodec == "none")
}

// matches reports whether the candidate satisfies a format preference given
// either as a container ("m4a", "webm") or a codec ("opus").
func (c audioCandidate) matches(pref string) bool {
	if pref == "" {
		return false
	}
	return strings.EqualFold(c.Ext, pref) ||
		strings.HasPrefix(strings.ToLower(c.ACodec), strings.ToLower(pref))
}

func (c audioCandidate) playable() bool {
	return c.URL == "" || !urlutil.IsImageOrStoryboard(c.URL)
}

// selectAudio picks the stream to return when the library's own choice is
// unusable. Audio-only formats win, highest bitrate first, with the preferred
// extension ahead of the rest; otherwise the first format carrying audio.
func selectAudio(formats []audioCandidate, preferExt string) (audioCandidate, bool) {
	var audio []audioCandidate
	for _, f := range formats {
		if f.playable() && f.audioOnly() {
			audio = append(audio, f)
		}
	}

	if len(audio) > 0 {
		sort.SliceStable(audio, func(i, j int) bool {
			return audio[i].Bitrate > audio[j].Bitrate
		})
		for _, f := range audio {
			if f.matches(preferExt) {
				return f, true
			}
		}
		return audio[0], true
	}

	for _, f := range formats {
		if f.playable() && f.hasAudio() {
			return f, true
		}
	}
	return audioCandidate{}, false
}

func titleOrUnknown(title string) string {
	if strings.TrimSpace(title) == "" {
		return unknownTitle
	}
	return title
}
