package resolver

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// mediaExtensions is the set of request-path extensions treated as playable
// media. Requests matching it are classified and aborted at interception;
// they are never let through to the network.
var mediaExtensions = map[string]struct{}{
	".m3u8": {},
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
}

// qualityMarkers maps URL substrings to quality labels, tried in descending
// resolution order so "2160" is not shadowed by a stray "360" elsewhere in
// the path. the player only emits these five variants.
var qualityMarkers = []struct {
	marker string
	label  string
}{
	{"2160", "2160p"},
	{"1080", "1080p"},
	{"720", "720p"},
	{"480", "480p"},
	{"360", "360p"},
}

var qualityDisplayNames = map[string]string{
	"2160p": "4K",
	"1080p": "Full HD",
	"720p":  "HD",
	"480p":  "SD",
	"360p":  "Low",
}

// IsMediaURL reports whether raw points at a media file by path extension.
func IsMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := mediaExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// ClassifyQuality maps a media URL to its quality label. URLs carrying none
// of the known resolution markers are not actionable and report ok=false.
func ClassifyQuality(raw string) (label string, ok bool) {
	for _, q := range qualityMarkers {
		if strings.Contains(raw, q.marker) {
			return q.label, true
		}
	}
	return "", false
}

// NormalizeQualityAttr normalizes an inline source element's quality
// attribute ("1080", "1080p", "1080P") to the canonical label.
func NormalizeQualityAttr(attr string) (string, bool) {
	attr = strings.ToLower(strings.TrimSpace(attr))
	attr = strings.TrimSuffix(attr, "p")
	for _, q := range qualityMarkers {
		if attr == q.marker {
			return q.label, true
		}
	}
	return "", false
}

// QualityRank returns the numeric ordering key for a label; labels without a
// leading number rank last.
func QualityRank(label string) int {
	digits := label
	for i, r := range label {
		if r < '0' || r > '9' {
			digits = label[:i]
			break
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// DisplayTitle maps a quality label to its human name, defaulting to the raw
// label when unmapped.
func DisplayTitle(label string) string {
	if name, ok := qualityDisplayNames[label]; ok {
		return name
	}
	return label
}
