// Package resolver turns one detail-page URL into a ranked list of playable
// streams with subtitle tracks. Media URLs never appear in static HTML, so
// resolution renders the page and observes the requests the player emits;
// results are cached by normalized detail URL because a render is expensive.
package resolver

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/models"
	"github.com/rapierpits/HStream-Stremio/utils/urlutil"
)

// DetailRenderer renders one detail page with media interception installed.
// Every call owns exactly one rendering session, torn down before it returns
// on all exit paths.
type DetailRenderer interface {
	RenderDetail(ctx context.Context, url string) (*RenderedDetail, error)
}

// RenderedDetail is what one rendering pass yields: the media requests the
// player emitted (already classified and aborted at interception) and a
// snapshot of the rendered DOM.
type RenderedDetail struct {
	Intercepted []InterceptedStream
	HTML        string
}

// InterceptedStream is one classified, aborted media request.
type InterceptedStream struct {
	Label string
	URL   string
}

// Service resolves and caches playable stream payloads.
type Service struct {
	origin   string
	renderer DetailRenderer
	store    *cache.Cache[models.ResolvedItem]

	// Concurrent resolutions of the same URL share one render.
	inflightMu sync.Mutex
	inflight   map[string]*inflightResolve
}

type inflightResolve struct {
	wg   sync.WaitGroup
	item models.ResolvedItem
}

func NewService(site config.SiteSettings, renderer DetailRenderer, store *cache.Cache[models.ResolvedItem]) *Service {
	return &Service{
		origin:   site.Origin,
		renderer: renderer,
		store:    store,
		inflight: make(map[string]*inflightResolve),
	}
}

// Resolve returns the resolved item for detailURL. It never fails: any error
// during rendering or extraction degrades to an empty-stream "Unknown"
// result, so the serving layer can always render something.
func (s *Service) Resolve(ctx context.Context, detailURL string) models.ResolvedItem {
	u := urlutil.RepairDoubleOrigin(s.origin, detailURL)
	if item, ok := s.store.Get(u); ok {
		return item
	}

	s.inflightMu.Lock()
	if f, ok := s.inflight[u]; ok {
		s.inflightMu.Unlock()
		f.wg.Wait()
		return f.item
	}
	f := &inflightResolve{}
	f.wg.Add(1)
	s.inflight[u] = f
	s.inflightMu.Unlock()

	f.item = s.resolve(ctx, u)
	f.wg.Done()

	s.inflightMu.Lock()
	delete(s.inflight, u)
	s.inflightMu.Unlock()
	return f.item
}

func (s *Service) resolve(ctx context.Context, u string) models.ResolvedItem {
	rendered, err := s.renderer.RenderDetail(ctx, u)
	if err != nil {
		log.Printf("[resolver] %s: render failed, serving degraded result: %v", u, err)
		return models.ResolvedItem{Title: "Unknown"}
	}
	item, err := s.compose(rendered)
	if err != nil {
		// Degraded results are never cached; a later call may succeed.
		log.Printf("[resolver] %s: extraction failed, serving degraded result: %v", u, err)
		return models.ResolvedItem{Title: "Unknown"}
	}
	s.store.Set(u, item)
	log.Printf("[resolver] %s: %d streams, %d subtitles", u, len(item.Streams), len(item.Subtitles))
	return item
}

type streamCandidate struct {
	url         string
	intercepted bool
}

// compose merges intercepted and inline stream candidates, filters, ranks
// and attaches subtitles. Interception wins a quality tie: it reflects what
// the player actually requested, while inline attributes can be stale.
func (s *Service) compose(r *RenderedDetail) (models.ResolvedItem, error) {
	doc, err := parseDetail(s.origin, r.HTML)
	if err != nil {
		return models.ResolvedItem{}, err
	}

	candidates := make(map[string]streamCandidate)
	for _, in := range r.Intercepted {
		if _, dup := candidates[in.Label]; !dup {
			candidates[in.Label] = streamCandidate{url: in.URL, intercepted: true}
		}
	}
	for _, src := range doc.InlineSources {
		if _, taken := candidates[src.Label]; !taken {
			candidates[src.Label] = streamCandidate{url: src.URL}
		}
	}

	subs := MergeSubtitles(doc.ButtonSubs, doc.TrackSubs)

	labels := make([]string, 0, len(candidates))
	for label := range candidates {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return QualityRank(labels[i]) > QualityRank(labels[j])
	})

	streams := make([]models.StreamPayload, 0, len(labels))
	for _, label := range labels {
		c := candidates[label]
		// Non-HTTPS and malformed URLs are expected mixed-content noise from
		// the source, dropped silently.
		if !urlutil.IsHTTPS(c.url) {
			continue
		}
		streams = append(streams, models.StreamPayload{
			Label:        label,
			URL:          c.url,
			DisplayTitle: DisplayTitle(label),
			Subtitles:    subs,
		})
	}

	title := doc.Title
	if title == "" {
		title = "Unknown"
	}
	return models.ResolvedItem{
		Title:          title,
		OriginalTitle:  doc.OriginalTitle,
		Description:    doc.Description,
		ReleaseDate:    doc.ReleaseDate,
		Studio:         doc.Studio,
		Genres:         doc.Genres,
		ViewCount:      doc.ViewCount,
		SequenceNumber: doc.SequenceNumber,
		Subtitles:      subs,
		Streams:        streams,
	}, nil
}
