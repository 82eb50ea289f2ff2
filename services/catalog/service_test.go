package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/models"
)

type stubProvider struct {
	mu        sync.Mutex
	launches  int
	renders   int
	pages     map[int]string
	errs      map[int]error
	launchErr error
}

func (p *stubProvider) Launch(ctx context.Context) (ListingSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.launchErr != nil {
		return nil, p.launchErr
	}
	p.launches++
	return &stubSession{p: p}, nil
}

func (p *stubProvider) counts() (launches, renders int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.launches, p.renders
}

type stubSession struct {
	p *stubProvider
}

func (s *stubSession) RenderListing(_ context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	page, _ := strconv.Atoi(u.Query().Get("page"))
	s.p.mu.Lock()
	s.p.renders++
	pageErr := s.p.errs[page]
	html := s.p.pages[page]
	s.p.mu.Unlock()
	if pageErr != nil {
		return "", pageErr
	}
	return html, nil
}

func (s *stubSession) Close() {}

// listingHTML renders slugs into the primary container shape.
func listingHTML(slugs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="search-results">`)
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<div class="item"><a href="/hentai/%s"><img src="/images/%s.webp" alt="%s"></a></div>`, slug, slug, slug)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// syntheticPage yields count unique records for one page.
func syntheticPage(page, count int) string {
	slugs := make([]string, count)
	for i := range slugs {
		slugs[i] = fmt.Sprintf("title-p%d-i%d", page, i)
	}
	return listingHTML(slugs...)
}

func testCrawl(pageSize, maxPages, batchSize int) config.CrawlSettings {
	return config.CrawlSettings{
		PageSize:         pageSize,
		MaxPages:         maxPages,
		BatchSize:        batchSize,
		RetryAttempts:    1,
		RetryDelayMillis: 0,
	}
}

func newTestService(crawl config.CrawlSettings, pages map[int]string, errs map[int]error) (*Service, *stubProvider) {
	provider := &stubProvider{pages: pages, errs: errs}
	store := cache.New[[]models.CatalogEntry](time.Minute)
	svc := NewService(config.SiteSettings{Origin: testOrigin}, crawl, provider, store)
	return svc, provider
}

func TestCatalogSliceIdempotentWithinTTL(t *testing.T) {
	pages := map[int]string{
		1: syntheticPage(1, 500),
		2: syntheticPage(2, 500),
		3: syntheticPage(3, 500),
	}
	svc, provider := newTestService(testCrawl(500, 8, 5), pages, nil)

	first := svc.CatalogSlice(context.Background(), 0, "", models.SortPopular)
	if len(first) != 500 {
		t.Fatalf("expected 500 records, got %d", len(first))
	}
	_, rendersAfterFirst := provider.counts()
	if rendersAfterFirst == 0 {
		t.Fatal("expected the first slice call to fetch pages")
	}

	second := svc.CatalogSlice(context.Background(), 0, "", models.SortPopular)
	if len(second) != 500 {
		t.Fatalf("expected 500 records on second call, got %d", len(second))
	}
	_, rendersAfterSecond := provider.counts()
	if rendersAfterSecond != rendersAfterFirst {
		t.Fatalf("second call within TTL issued %d extra fetches", rendersAfterSecond-rendersAfterFirst)
	}
}

func TestCatalogSliceDeduplicatesByIdentity(t *testing.T) {
	pages := map[int]string{
		1: listingHTML("alpha-1", "beta-1"),
		2: listingHTML("beta-1", "gamma-1"),
	}
	svc, _ := newTestService(testCrawl(2, 4, 2), pages, nil)

	got := svc.CatalogSlice(context.Background(), 0, "", models.SortPopular)
	if len(got) != 2 {
		t.Fatalf("expected a full window of 2, got %d", len(got))
	}

	rest := svc.CatalogSlice(context.Background(), 2, "", models.SortPopular)
	all := append(append([]models.CatalogEntry{}, got...), rest...)
	seen := map[string]int{}
	for _, e := range all {
		seen[e.Identity]++
	}
	if seen["hs:beta-1"] != 1 {
		t.Fatalf("expected exactly one entry for hs:beta-1, got %d", seen["hs:beta-1"])
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 unique identities, got %d: %v", len(seen), seen)
	}
}

func TestCatalogSliceWindowsEndToEnd(t *testing.T) {
	pages := map[int]string{
		1: syntheticPage(1, 500),
		2: syntheticPage(2, 500),
		3: syntheticPage(3, 500),
	}
	svc, provider := newTestService(testCrawl(500, 8, 5), pages, nil)

	window := svc.CatalogSlice(context.Background(), 1400, "", models.SortPopular)
	if len(window) != 100 {
		t.Fatalf("expected 100 records in window [1400,1500), got %d", len(window))
	}
	// Insertion order: record 1400 is the 401st record of page 3.
	if window[0].Identity != "hs:title-p3-i400" {
		t.Fatalf("unexpected first record of window: %s", window[0].Identity)
	}
	if window[99].Identity != "hs:title-p3-i499" {
		t.Fatalf("unexpected last record of window: %s", window[99].Identity)
	}

	launchesBefore, _ := provider.counts()
	beyond := svc.CatalogSlice(context.Background(), 1500, "", models.SortPopular)
	launchesAfter, _ := provider.counts()
	if launchesAfter-launchesBefore != 1 {
		t.Fatalf("expected exactly one more crawl batch, got %d", launchesAfter-launchesBefore)
	}
	if len(beyond) != 0 {
		t.Fatalf("expected empty slice past the end of catalog, got %d", len(beyond))
	}
}

func TestCatalogSliceKeepsPartialOnBatchError(t *testing.T) {
	pages := map[int]string{
		1: listingHTML("a-1", "a-2"),
		2: listingHTML("b-1", "b-2"),
	}
	errs := map[int]error{3: fmt.Errorf("status 503")}
	svc, provider := newTestService(testCrawl(2, 8, 2), pages, errs)

	if got := svc.CatalogSlice(context.Background(), 0, "", models.SortPopular); len(got) != 2 {
		t.Fatalf("seed slice: expected 2, got %d", len(got))
	}

	// Window beyond cached content: the next batch hits the failing page, the
	// loop stops, and the already-cached records survive.
	if got := svc.CatalogSlice(context.Background(), 4, "", models.SortPopular); len(got) != 0 {
		t.Fatalf("expected empty window past failure, got %d", len(got))
	}

	_, rendersBefore := provider.counts()
	if got := svc.CatalogSlice(context.Background(), 0, "", models.SortPopular); len(got) != 2 {
		t.Fatalf("cached records lost after batch failure: got %d", len(got))
	}
	_, rendersAfter := provider.counts()
	if rendersAfter != rendersBefore {
		t.Fatal("serving the cached window should not refetch")
	}
}

func TestFindByIdentityFallbackCrawl(t *testing.T) {
	pages := map[int]string{
		1: listingHTML("a-1", "a-2"),
		2: listingHTML("b-1", "b-2"),
		3: listingHTML("c-1", "wanted-7"),
	}
	svc, provider := newTestService(testCrawl(2, 8, 2), pages, nil)

	entry, ok := svc.FindByIdentity(context.Background(), "hs:wanted-7")
	if !ok {
		t.Fatal("expected fallback crawl to locate the identity")
	}
	if entry.DetailURL != testOrigin+"/hentai/wanted-7" {
		t.Fatalf("unexpected detail URL: %s", entry.DetailURL)
	}
	launches, renders := provider.counts()
	if launches != 1 {
		t.Fatalf("expected one rendering session for the lookup, got %d", launches)
	}
	if renders != 3 {
		t.Fatalf("expected 3 sequential page fetches, got %d", renders)
	}

	// Second lookup is served from cache.
	if _, ok := svc.FindByIdentity(context.Background(), "hs:wanted-7"); !ok {
		t.Fatal("expected cached lookup to succeed")
	}
	launchesAfter, _ := provider.counts()
	if launchesAfter != launches {
		t.Fatal("cached lookup must not launch a session")
	}
}

func TestFindByIdentityTerminatesOnEmptyPage(t *testing.T) {
	pages := map[int]string{1: listingHTML("only-1")}
	svc, provider := newTestService(testCrawl(2, 8, 2), pages, nil)

	if _, ok := svc.FindByIdentity(context.Background(), "hs:missing-1"); ok {
		t.Fatal("identity should not be found")
	}
	_, renders := provider.counts()
	if renders != 2 {
		t.Fatalf("expected crawl to stop at the first empty page (2 fetches), got %d", renders)
	}
}

func TestFindByIdentityTerminatesOnNavigationError(t *testing.T) {
	errs := map[int]error{1: fmt.Errorf("status 500")}
	svc, provider := newTestService(testCrawl(2, 8, 2), map[int]string{}, errs)

	if _, ok := svc.FindByIdentity(context.Background(), "hs:missing-1"); ok {
		t.Fatal("identity should not be found")
	}
	_, renders := provider.counts()
	if renders != 1 {
		t.Fatalf("expected crawl to stop at the failing page, got %d fetches", renders)
	}
}
