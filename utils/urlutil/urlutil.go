// Package urlutil normalizes URLs scraped from the source site.
package urlutil

import (
	"net/url"
	"strings"
)

// Absolutize rewrites href against origin when it is relative. Absolute URLs
// and empty strings pass through unchanged.
func Absolutize(origin, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(origin)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// RepairDoubleOrigin undoes the "<origin>https://..." artifact produced when
// an already-absolute link gets concatenated onto the site origin upstream.
func RepairDoubleOrigin(origin, raw string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if idx := strings.Index(raw, origin+scheme); idx == 0 {
			return raw[len(origin):]
		}
	}
	return raw
}

// IsHTTPS reports whether raw parses as a URL with the https scheme and a
// non-empty host.
func IsHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}

// Slug returns the last non-empty path segment of raw, lowercased. It is the
// stable per-item token used to build catalog identities.
func Slug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	segs := strings.Split(path, "/")
	return strings.ToLower(segs[len(segs)-1])
}
