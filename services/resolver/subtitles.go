package resolver

import (
	"path"
	"strings"

	"github.com/rapierpits/HStream-Stremio/models"
)

// languageCodes maps the site's language button labels to ISO 639-2 codes.
// Unrecognized labels default to eng, which matches the site's bias.
var languageCodes = map[string]string{
	"english":    "eng",
	"japanese":   "jpn",
	"chinese":    "chi",
	"korean":     "kor",
	"spanish":    "spa",
	"french":     "fre",
	"german":     "ger",
	"italian":    "ita",
	"portuguese": "por",
	"russian":    "rus",
	"arabic":     "ara",
	"indonesian": "ind",
	"thai":       "tha",
	"vietnamese": "vie",
	"hindi":      "hin",
}

// LanguageCode resolves a human language label to a 3-letter code.
func LanguageCode(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	// Button text often carries extra words ("English subtitles").
	for name, code := range languageCodes {
		if strings.Contains(key, name) {
			return code
		}
	}
	if code, ok := languageCodes[key]; ok {
		return code
	}
	return "eng"
}

// buttonSubtitle builds a subtitle record from one download affordance.
// label is the button text; an auto-translated marker in it is surfaced in
// the display name.
func buttonSubtitle(label, href string) models.ResolvedSubtitle {
	code := LanguageCode(label)
	display := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), "Download"))
	if display == "" {
		display = label
	}
	if strings.Contains(strings.ToLower(label), "auto") {
		display = display + " (Auto Translated)"
	}
	return models.ResolvedSubtitle{
		ID:          code,
		Lang:        code,
		DisplayName: display,
		URL:         href,
		Format:      subtitleFormat(href),
	}
}

func subtitleFormat(href string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(strings.SplitN(href, "?", 2)[0])), ".")
}

// MergeSubtitles combines the two subtitle sources keyed by language.
// Download-button entries take priority: a track element never overwrites a
// button entry for the same language, regardless of ingest order.
func MergeSubtitles(buttons, tracks []models.ResolvedSubtitle) []models.ResolvedSubtitle {
	var out []models.ResolvedSubtitle
	seen := make(map[string]struct{})
	for _, s := range buttons {
		if _, dup := seen[s.Lang]; dup {
			continue
		}
		seen[s.Lang] = struct{}{}
		out = append(out, s)
	}
	for _, s := range tracks {
		if _, dup := seen[s.Lang]; dup {
			continue
		}
		seen[s.Lang] = struct{}{}
		out = append(out, s)
	}
	return out
}
