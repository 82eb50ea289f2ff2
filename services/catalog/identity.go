package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rapierpits/HStream-Stremio/utils/urlutil"
)

// identityPrefix routes Stremio ids back to this addon.
const identityPrefix = "hs:"

var trailingOrdinal = regexp.MustCompile(`-\s*(\d+)\s*$`)

// IdentityOf derives the stable catalog identity for a detail page.
// Rules: take the last non-empty path segment of the detail URL (the slug),
// lowercased; when a sequence number is known and the slug does not already
// carry the "-<n>" suffix, append it; prefix with "hs:". The same detail URL
// and sequence number always produce the same identity across crawls.
func IdentityOf(detailURL string, sequence int) string {
	slug := urlutil.Slug(detailURL)
	if slug == "" {
		return ""
	}
	if sequence > 0 && !strings.HasSuffix(slug, fmt.Sprintf("-%d", sequence)) {
		slug = fmt.Sprintf("%s-%d", slug, sequence)
	}
	return identityPrefix + slug
}

// ParseSequence extracts a trailing "- <digits>" ordinal from a title or
// slug. Returns 0 when no ordinal is present.
func ParseSequence(s string) int {
	m := trailingOrdinal.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
