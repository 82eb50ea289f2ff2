// Package catalog builds and serves the deduplicated per-query listing
// catalog. Pages are crawled in bounded-concurrency batches, merged into an
// append-only cached sequence per (search, sort) namespace, and sliced out to
// callers; a sequential fallback crawl locates identities beyond the crawled
// window.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/models"
)

// ListingSession is one live rendering session. RenderListing opens its own
// page-scoped browsing context per call, so batch pages may run concurrently
// against a single session.
type ListingSession interface {
	RenderListing(ctx context.Context, url string) (string, error)
	Close()
}

// SessionProvider launches rendering sessions. Exactly one session exists per
// crawl batch (and per fallback lookup); it is torn down before the call
// returns on every exit path.
type SessionProvider interface {
	Launch(ctx context.Context) (ListingSession, error)
}

// Service is the catalog builder.
type Service struct {
	origin   string
	crawl    config.CrawlSettings
	sessions SessionProvider
	store    *cache.Cache[[]models.CatalogEntry]

	// Per-namespace crawl locks so concurrent callers for the same uncached
	// query share one crawl instead of clobbering each other's merge.
	nsMu    sync.Mutex
	nsLocks map[string]*sync.Mutex
}

func NewService(site config.SiteSettings, crawl config.CrawlSettings, sessions SessionProvider, store *cache.Cache[[]models.CatalogEntry]) *Service {
	return &Service{
		origin:   site.Origin,
		crawl:    crawl,
		sessions: sessions,
		store:    store,
		nsLocks:  make(map[string]*sync.Mutex),
	}
}

func namespaceKey(search string, sort models.SortOrder) string {
	return search + "|" + string(sort)
}

func (s *Service) lockNamespace(key string) *sync.Mutex {
	s.nsMu.Lock()
	mu, ok := s.nsLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.nsLocks[key] = mu
	}
	s.nsMu.Unlock()
	mu.Lock()
	return mu
}

// CatalogSlice returns the window [offset, offset+pageSize) of the
// namespace's accumulated sequence, crawling further pages as needed up to
// the configured ceiling. It never fails: on a crawl error the partial
// results already cached are kept and sliced.
func (s *Service) CatalogSlice(ctx context.Context, offset int, search string, sort models.SortOrder) []models.CatalogEntry {
	key := namespaceKey(search, sort)
	mu := s.lockNamespace(key)
	defer mu.Unlock()

	entries, _ := s.store.Get(key)
	target := offset + s.crawl.PageSize
	ceiling := s.crawl.MaxPages * s.crawl.PageSize

	for len(entries) < target && len(entries) < ceiling {
		updated, fetched, err := s.crawlBatch(ctx, key, entries, search, sort)
		if err != nil {
			log.Printf("[catalog] batch failed for ns=%q: %v (keeping %d cached records)", key, err, len(entries))
			break
		}
		if fetched == 0 {
			// Normal end of catalog for this query, not an error.
			break
		}
		if len(updated) == len(entries) {
			// Everything fetched was a duplicate; refetching the same page
			// would loop forever.
			log.Printf("[catalog] ns=%q: batch yielded only duplicates, stopping", key)
			break
		}
		entries = updated
	}

	if offset >= len(entries) {
		return nil
	}
	end := offset + s.crawl.PageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}

// crawlBatch fetches up to batchSize consecutive pages concurrently through
// one rendering session, merges the yield into the namespace sequence and
// persists it. fetched is the number of records scraped before dedup.
func (s *Service) crawlBatch(ctx context.Context, key string, entries []models.CatalogEntry, search string, sort models.SortOrder) (updated []models.CatalogEntry, fetched int, err error) {
	next := len(entries)/s.crawl.PageSize + 1
	last := next + s.crawl.BatchSize - 1
	if last > s.crawl.MaxPages {
		last = s.crawl.MaxPages
	}
	pages := make([]int, 0, last-next+1)
	for p := next; p <= last; p++ {
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return entries, 0, nil
	}

	crawlID := uuid.NewString()[:8]
	log.Printf("[catalog] crawl %s: ns=%q pages %d-%d", crawlID, key, next, last)

	sess, err := s.sessions.Launch(ctx)
	if err != nil {
		return entries, 0, fmt.Errorf("launch session: %w", err)
	}
	defer sess.Close()

	m := iter.Mapper[int, []models.CatalogEntry]{MaxGoroutines: s.crawl.BatchSize}
	results, err := m.MapErr(pages, func(page *int) ([]models.CatalogEntry, error) {
		return s.fetchPage(ctx, sess, ListingRequest{Page: *page, Search: search, Sort: sort})
	})
	if err != nil {
		return entries, 0, err
	}

	// Flatten preserving per-page order, then batch order.
	var batch []models.CatalogEntry
	for _, page := range results {
		batch = append(batch, page...)
	}
	merged, appended := mergeEntries(entries, batch)
	if appended > 0 {
		s.store.Set(key, merged)
	}
	log.Printf("[catalog] crawl %s: fetched %d records, appended %d (ns total %d)", crawlID, len(batch), appended, len(merged))
	return merged, len(batch), nil
}

// fetchPage renders one listing page and extracts its records. Navigation is
// retried with a fixed back-off; exhausted retries surface to the caller.
func (s *Service) fetchPage(ctx context.Context, sess ListingSession, req ListingRequest) ([]models.CatalogEntry, error) {
	u := ListingURL(s.origin, req)
	html, err := retry.DoWithData(
		func() (string, error) { return sess.RenderListing(ctx, u) },
		retry.Context(ctx),
		retry.Attempts(uint(s.crawl.RetryAttempts)),
		retry.Delay(s.crawl.RetryDelay()),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", req.Page, err)
	}
	return ExtractEntries(s.origin, html), nil
}

// mergeEntries appends records whose identity is not yet present, preserving
// crawl order. Duplicates are suppressed at insertion, never by rebuilding
// the sequence.
func mergeEntries(existing, fetched []models.CatalogEntry) ([]models.CatalogEntry, int) {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.Identity] = struct{}{}
	}
	merged := existing
	appended := 0
	for _, e := range fetched {
		if _, dup := seen[e.Identity]; dup {
			continue
		}
		seen[e.Identity] = struct{}{}
		merged = append(merged, e)
		appended++
	}
	return merged, appended
}

// FindByIdentity returns the catalog entry for identity, first scanning every
// cached namespace, then falling back to a sequential crawl of the default
// namespace until the identity shows up or a termination condition hits.
func (s *Service) FindByIdentity(ctx context.Context, identity string) (models.CatalogEntry, bool) {
	if e, ok := s.lookupCached(identity); ok {
		return e, true
	}
	return s.crawlForIdentity(ctx, identity)
}

func (s *Service) lookupCached(identity string) (models.CatalogEntry, bool) {
	for _, key := range s.store.Keys() {
		entries, ok := s.store.Get(key)
		if !ok {
			continue
		}
		for _, e := range entries {
			if e.Identity == identity {
				return e, true
			}
		}
	}
	return models.CatalogEntry{}, false
}

// crawlForIdentity walks the default namespace one page at a time, appending
// each page's yield and checking for the target after every page. Sequential
// on purpose: the target page is unknown, so latency to the first checked
// page beats batch throughput. Terminates on found, empty page, navigation
// failure, or the page ceiling.
func (s *Service) crawlForIdentity(ctx context.Context, identity string) (models.CatalogEntry, bool) {
	key := namespaceKey("", models.SortPopular)
	mu := s.lockNamespace(key)
	defer mu.Unlock()

	entries, _ := s.store.Get(key)
	// A concurrent crawl may have found it while we waited on the lock.
	for _, e := range entries {
		if e.Identity == identity {
			return e, true
		}
	}

	sess, err := s.sessions.Launch(ctx)
	if err != nil {
		log.Printf("[catalog] lookup %q: launch session: %v", identity, err)
		return models.CatalogEntry{}, false
	}
	defer sess.Close()

	for page := len(entries)/s.crawl.PageSize + 1; page <= s.crawl.MaxPages; page++ {
		fetched, err := s.fetchPage(ctx, sess, ListingRequest{Page: page, Sort: models.SortPopular})
		if err != nil {
			log.Printf("[catalog] lookup %q: stopping at page %d: %v", identity, page, err)
			return models.CatalogEntry{}, false
		}
		if len(fetched) == 0 {
			return models.CatalogEntry{}, false
		}
		merged, appended := mergeEntries(entries, fetched)
		if appended > 0 {
			s.store.Set(key, merged)
		}
		entries = merged
		for _, e := range fetched {
			if e.Identity == identity {
				return e, true
			}
		}
	}
	return models.CatalogEntry{}, false
}
