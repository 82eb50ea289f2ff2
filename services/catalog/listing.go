package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rapierpits/HStream-Stremio/models"
	"github.com/rapierpits/HStream-Stremio/utils/urlutil"
)

// ListingRequest describes one listing page crawl.
type ListingRequest struct {
	Page   int
	Search string
	Sort   models.SortOrder
}

// ListingURL composes the site's listing URL for req. Text queries use the
// q= form; browse queries use the order= form.
func ListingURL(origin string, req ListingRequest) string {
	if req.Search != "" {
		return fmt.Sprintf("%s/search?q=%s&page=%d&view=poster",
			origin, url.QueryEscape(req.Search), req.Page)
	}
	return fmt.Sprintf("%s/search?view=poster&order=%s&page=%d",
		origin, req.Sort.SiteToken(), req.Page)
}

// ListingReadySelector is the container the page fetcher waits for before
// extracting. A timeout on this wait is not fatal; extraction proceeds
// best-effort against whatever DOM is present.
const ListingReadySelector = "div.grid, div.search-results, ul.listing"

// The site renders listings through more than one template depending on the
// rendering path, so container shapes are tried in priority order; the first
// selector that yields any record wins.
var containerSelectors = []string{
	"div.search-results div.item",
	"ul.listing li",
	"div.grid > div",
	"a[href*='/hentai/']",
}

// ExtractEntries pulls catalog records out of a rendered listing document.
// A record that fails to yield a resolvable detail link is silently skipped;
// a malformed record never fails its siblings.
func ExtractEntries(origin, html string) []models.CatalogEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	for _, sel := range containerSelectors {
		var entries []models.CatalogEntry
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if e, ok := extractOne(origin, s); ok {
				entries = append(entries, e)
			}
		})
		if len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func extractOne(origin string, s *goquery.Selection) (models.CatalogEntry, bool) {
	link := s
	if !s.Is("a") {
		link = s.Find("a[href]").First()
	}
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return models.CatalogEntry{}, false
	}
	detailURL := urlutil.Absolutize(origin, href)
	if _, err := url.Parse(detailURL); err != nil || urlutil.Slug(detailURL) == "" {
		return models.CatalogEntry{}, false
	}

	img := s.Find("img").First()
	poster := firstAttr(img, "src", "data-src")

	title := strings.TrimSpace(firstAttr(img, "alt"))
	if title == "" {
		title = strings.TrimSpace(s.Find(".title, h3, h4").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		title = urlutil.Slug(detailURL)
	}

	seq := ParseSequence(title)
	if seq == 0 {
		seq = ParseSequence(urlutil.Slug(detailURL))
	}
	display := title
	if seq > 0 && ParseSequence(title) == 0 {
		display = fmt.Sprintf("%s - %d", title, seq)
	}

	identity := IdentityOf(detailURL, seq)
	if identity == "" {
		return models.CatalogEntry{}, false
	}
	return models.CatalogEntry{
		Identity:       identity,
		DisplayName:    display,
		PosterURL:      urlutil.Absolutize(origin, poster),
		DetailURL:      detailURL,
		SequenceNumber: seq,
	}, true
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
