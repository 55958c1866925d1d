// Package urlutil provides URL classification helpers shared by the handlers
// and extractors.
package urlutil

import (
	"net/url"
	"strings"

	"github.com/tidwall/match"
)

// YouTubeHosts are the host patterns served by YouTube.
var YouTubeHosts = []string{
	"youtube.com",
	"m.youtube.com",
	"music.youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
}

// Host returns the lower-cased hostname of rawURL without a leading "www.".
// Scheme-less input such as "youtube.com/watch?v=..." is read as https.
// It returns "" when rawURL has no parseable host.
func Host(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err == nil && parsed.Host == "" && parsed.Scheme == "" && rawURL != "" {
		parsed, err = url.Parse("https://" + rawURL)
	}
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// MatchHost reports whether the host of rawURL matches any of the glob
// patterns ("*" and "?" wildcards). Patterns are compared without "www.".
func MatchHost(rawURL string, patterns []string) bool {
	host := Host(rawURL)
	if host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.ToLower(p), "www.")
		if match.Match(host, p) {
			return true
		}
	}
	return false
}

// IsYouTube reports whether rawURL points at a YouTube host.
func IsYouTube(rawURL string) bool {
	return MatchHost(rawURL, YouTubeHosts)
}

// IsImageOrStoryboard reports whether a media URL is a thumbnail or
// storyboard sprite rather than a playable stream.
func IsImageOrStoryboard(mediaURL string) bool {
	lower := strings.ToLower(mediaURL)
	return strings.Contains(lower, "storyboard") ||
		strings.Contains(lower, ".jpg") ||
		strings.Contains(lower, ".png")
}

// GetSchemeHost extracts scheme://host from a URL.
func GetSchemeHost(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
