package resolver

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rapierpits/HStream-Stremio/models"
	"github.com/rapierpits/HStream-Stremio/utils/urlutil"
)

// detailDoc is everything extractable from one rendered detail page.
type detailDoc struct {
	Title          string
	OriginalTitle  string
	Description    string
	ReleaseDate    string
	Studio         string
	Genres         []string
	ViewCount      int
	SequenceNumber int
	ButtonSubs     []models.ResolvedSubtitle
	TrackSubs      []models.ResolvedSubtitle
	InlineSources  []inlineSource
}

// inlineSource is a <source>-style element carrying an explicit quality
// attribute. Inline qualities are only trusted when interception did not
// already capture that quality.
type inlineSource struct {
	Label string
	URL   string
}

var (
	isoDate      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	siteSuffix   = regexp.MustCompile(`(?i)\s*[-|–]\s*hstream.*$`)
	in4kFragment = regexp.MustCompile(`(?i)\s+in 4k.*$`)
	digitRun     = regexp.MustCompile(`[\d,]+`)
	trailingSeq  = regexp.MustCompile(`-\s*(\d+)\s*$`)
)

// parseDetail extracts metadata, subtitle sources and inline stream sources
// from a rendered detail document. Extraction is best-effort per field; a
// missing field never fails the document.
func parseDetail(origin, html string) (detailDoc, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return detailDoc{}, err
	}

	d := detailDoc{
		Title:         extractTitle(doc),
		OriginalTitle: strings.TrimSpace(doc.Find("h2[lang=ja], p[lang=ja], .japanese-title").First().Text()),
		Description:   extractDescription(doc),
		ReleaseDate:   extractReleaseDate(doc),
		Studio:        strings.TrimSpace(doc.Find("a[href*='studio']").First().Text()),
		Genres:        extractGenres(doc),
		ViewCount:     extractViewCount(doc),
	}
	if m := trailingSeq.FindStringSubmatch(d.Title); m != nil {
		d.SequenceNumber, _ = strconv.Atoi(m[1])
	}

	// Primary subtitle source: download buttons grouping a language label
	// with a file link.
	doc.Find("a[download], .download a[href], a.download").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		label := strings.TrimSpace(s.Text())
		if label == "" {
			label = strings.TrimSpace(s.AttrOr("title", ""))
		}
		d.ButtonSubs = append(d.ButtonSubs, buttonSubtitle(label, urlutil.Absolutize(origin, href)))
	})

	// Fallback subtitle source: inline track elements.
	doc.Find("track[kind='subtitles'], track[kind='captions']").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		lang := strings.TrimSpace(s.AttrOr("srclang", ""))
		label := strings.TrimSpace(s.AttrOr("label", lang))
		code := LanguageCode(label)
		if code == "eng" && lang != "" && len(lang) == 3 {
			code = strings.ToLower(lang)
		}
		d.TrackSubs = append(d.TrackSubs, models.ResolvedSubtitle{
			ID:          code,
			Lang:        code,
			DisplayName: label,
			URL:         urlutil.Absolutize(origin, src),
			Format:      subtitleFormat(src),
		})
	})

	// Inline video sources with an explicit quality attribute
	// (size, then label, then title).
	doc.Find("video source, source").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		attr := firstNonEmptyAttr(s, "size", "label", "title")
		label, ok := NormalizeQualityAttr(attr)
		if !ok {
			return
		}
		d.InlineSources = append(d.InlineSources, inlineSource{
			Label: label,
			URL:   urlutil.Absolutize(origin, src),
		})
	})

	return d, nil
}

func extractTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = in4kFragment.ReplaceAllString(title, "")
	title = siteSuffix.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

func extractDescription(doc *goquery.Document) string {
	if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc := strings.TrimSpace(meta); desc != "" {
			return desc
		}
	}
	return strings.TrimSpace(doc.Find(".description, p.description").First().Text())
}

// extractReleaseDate finds the first ISO date near a "Released" affordance.
func extractReleaseDate(doc *goquery.Document) string {
	var date string
	doc.Find("div, p, span, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) > 256 || !strings.Contains(text, "Released") {
			return true
		}
		if m := isoDate.FindString(text); m != "" {
			date = m
			return false
		}
		return true
	})
	return date
}

func extractGenres(doc *goquery.Document) []string {
	var genres []string
	seen := make(map[string]struct{})
	doc.Find("a[href*='tags'], a[href*='genre']").Each(func(_ int, s *goquery.Selection) {
		g := strings.TrimSpace(s.Text())
		if g == "" {
			return
		}
		if _, dup := seen[g]; dup {
			return
		}
		seen[g] = struct{}{}
		genres = append(genres, g)
	})
	return genres
}

func extractViewCount(doc *goquery.Document) int {
	count := 0
	doc.Find("div, p, span, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		// Bias to the small leaf node carrying "123,456 views" rather than a
		// page-level container that happens to contain the word.
		if len(text) > 64 || !strings.Contains(strings.ToLower(text), "views") {
			return true
		}
		if m := digitRun.FindString(text); m != "" {
			if n, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil {
				count = n
				return false
			}
		}
		return true
	})
	return count
}

func firstNonEmptyAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(s.AttrOr(n, "")); v != "" {
			return v
		}
	}
	return ""
}
