package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/models"
)

type fakeCatalogService struct {
	entries []models.CatalogEntry

	lastOffset int
	lastSearch string
	lastSort   models.SortOrder
	sliceCalls int
	findCalls  int
}

func (f *fakeCatalogService) CatalogSlice(_ context.Context, offset int, search string, sort models.SortOrder) []models.CatalogEntry {
	f.sliceCalls++
	f.lastOffset = offset
	f.lastSearch = search
	f.lastSort = sort
	return f.entries
}

func (f *fakeCatalogService) FindByIdentity(_ context.Context, identity string) (models.CatalogEntry, bool) {
	f.findCalls++
	for _, e := range f.entries {
		if e.Identity == identity {
			return e, true
		}
	}
	return models.CatalogEntry{}, false
}

type fakeResolverService struct {
	item  models.ResolvedItem
	calls int
}

func (f *fakeResolverService) Resolve(_ context.Context, _ string) models.ResolvedItem {
	f.calls++
	return f.item
}

func sampleEntry() models.CatalogEntry {
	return models.CatalogEntry{
		Identity:       "hs:sample-show-1",
		DisplayName:    "Sample Show - 1",
		PosterURL:      "https://hstream.moe/images/sample-show-1.webp",
		DetailURL:      "https://hstream.moe/hentai/sample-show-1",
		SequenceNumber: 1,
	}
}

func doRequest(h http.HandlerFunc, path string, vars map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = mux.SetURLVars(req, vars)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestManifestShape(t *testing.T) {
	h := NewManifestHandler("1.0.0")
	rec := doRequest(h.Get, "/manifest.json", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var m models.Manifest
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(m.Catalogs) != 2 {
		t.Fatalf("expected 2 catalogs, got %d", len(m.Catalogs))
	}
	if m.Catalogs[0].ID != CatalogPopularID || m.Catalogs[1].ID != CatalogRecentID {
		t.Fatalf("unexpected catalog ids: %+v", m.Catalogs)
	}
	if len(m.IDPrefixes) != 1 || m.IDPrefixes[0] != "hs:" {
		t.Fatalf("unexpected id prefixes: %v", m.IDPrefixes)
	}
}

func TestCatalogMapsIDToSortOrder(t *testing.T) {
	svc := &fakeCatalogService{entries: []models.CatalogEntry{sampleEntry()}}
	h := NewCatalogHandler(svc)

	rec := doRequest(h.Get, "/catalog/movie/hstream-recent.json",
		map[string]string{"id": "hstream-recent.json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastSort != models.SortRecent {
		t.Fatalf("expected recent sort, got %q", svc.lastSort)
	}
	if svc.lastOffset != 0 || svc.lastSearch != "" {
		t.Fatalf("expected default extras, got offset=%d search=%q", svc.lastOffset, svc.lastSearch)
	}

	var resp models.CatalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(resp.Metas) != 1 || resp.Metas[0].ID != "hs:sample-show-1" {
		t.Fatalf("unexpected metas: %+v", resp.Metas)
	}
	if resp.Metas[0].Name != "Sample Show - 1" || resp.Metas[0].Poster == "" {
		t.Fatalf("unexpected meta projection: %+v", resp.Metas[0])
	}
}

func TestCatalogParsesSearchAndSkipExtra(t *testing.T) {
	svc := &fakeCatalogService{}
	h := NewCatalogHandler(svc)

	rec := doRequest(h.Get, "/catalog/movie/hstream-popular/search=maid&skip=500.json",
		map[string]string{"id": "hstream-popular", "extra": "search=maid&skip=500.json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastSearch != "maid" || svc.lastOffset != 500 {
		t.Fatalf("expected search=maid skip=500, got search=%q skip=%d", svc.lastSearch, svc.lastOffset)
	}
	if svc.lastSort != models.SortPopular {
		t.Fatalf("expected popular sort, got %q", svc.lastSort)
	}

	// An empty slice still serves a valid empty metas array.
	var resp models.CatalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if resp.Metas == nil || len(resp.Metas) != 0 {
		t.Fatalf("expected empty metas array, got %+v", resp.Metas)
	}
}

func TestCatalogUnknownIDIs404(t *testing.T) {
	svc := &fakeCatalogService{}
	h := NewCatalogHandler(svc)

	rec := doRequest(h.Get, "/catalog/movie/netflix-top.json",
		map[string]string{"id": "netflix-top.json"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if svc.sliceCalls != 0 {
		t.Fatalf("unknown catalog must not trigger a crawl")
	}
}

func TestMetaResolvesAndCaches(t *testing.T) {
	svc := &fakeCatalogService{entries: []models.CatalogEntry{sampleEntry()}}
	res := &fakeResolverService{item: models.ResolvedItem{
		Title:       "Sample Show - 1",
		Description: "A synopsis.",
		ReleaseDate: "2024-03-15",
		Genres:      []string{"Action"},
		Streams:     []models.StreamPayload{{Label: "720p", URL: "https://cdn.example.com/v/720.m3u8"}},
	}}
	h := NewMetaHandler(svc, res, cache.New[models.MetaRecord](time.Minute))

	rec := doRequest(h.Get, "/meta/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.MetaResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if resp.Meta.ID != "hs:sample-show-1" || resp.Meta.Name != "Sample Show - 1" {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}
	if resp.Meta.ReleaseInfo != "2024" {
		t.Fatalf("expected release year 2024, got %q", resp.Meta.ReleaseInfo)
	}
	if resp.Meta.Poster == "" || resp.Meta.Background == "" {
		t.Fatalf("poster and background come from the catalog entry: %+v", resp.Meta)
	}

	// Second request is served from the meta cache without resolving again.
	doRequest(h.Get, "/meta/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	if res.calls != 1 {
		t.Fatalf("expected one resolve across two meta requests, got %d", res.calls)
	}
}

func TestMetaUnknownIdentityIs404(t *testing.T) {
	h := NewMetaHandler(&fakeCatalogService{}, &fakeResolverService{}, cache.New[models.MetaRecord](time.Minute))

	rec := doRequest(h.Get, "/meta/movie/hs:nope.json",
		map[string]string{"id": "hs:nope.json"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetaDegradedResolutionFallsBackToEntryUncached(t *testing.T) {
	svc := &fakeCatalogService{entries: []models.CatalogEntry{sampleEntry()}}
	res := &fakeResolverService{item: models.ResolvedItem{Title: "Unknown"}}
	h := NewMetaHandler(svc, res, cache.New[models.MetaRecord](time.Minute))

	rec := doRequest(h.Get, "/meta/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	var resp models.MetaResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if resp.Meta.Name != "Sample Show - 1" {
		t.Fatalf("degraded meta should use the catalog display name, got %q", resp.Meta.Name)
	}

	// Degraded records are not cached; the next request resolves again.
	doRequest(h.Get, "/meta/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	if res.calls != 2 {
		t.Fatalf("expected re-resolve after a degraded result, got %d calls", res.calls)
	}
}

func TestStreamServesRankedStreamsWithSubtitles(t *testing.T) {
	svc := &fakeCatalogService{entries: []models.CatalogEntry{sampleEntry()}}
	subs := []models.ResolvedSubtitle{{ID: "eng", Lang: "eng", URL: "https://hstream.moe/subs/en.ass"}}
	res := &fakeResolverService{item: models.ResolvedItem{
		Title: "Sample Show - 1",
		Streams: []models.StreamPayload{
			{Label: "1080p", URL: "https://cdn.example.com/v/1080.m3u8", DisplayTitle: "Full HD", Subtitles: subs},
			{Label: "720p", URL: "https://cdn.example.com/v/720.m3u8", DisplayTitle: "HD", Subtitles: subs},
		},
	}}
	h := NewStreamHandler(svc, res)

	rec := doRequest(h.Get, "/stream/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.StreamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if len(resp.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(resp.Streams))
	}
	if resp.Streams[0].URL != "https://cdn.example.com/v/1080.m3u8" || resp.Streams[0].Title != "Full HD" {
		t.Fatalf("unexpected first stream: %+v", resp.Streams[0])
	}
	if len(resp.Streams[0].Subtitles) != 1 || resp.Streams[0].Subtitles[0].Lang != "eng" {
		t.Fatalf("expected subtitles on every stream: %+v", resp.Streams[0])
	}
	if resp.Streams[0].ExternalURL != "" {
		t.Fatalf("playable streams must not set externalUrl")
	}
}

func TestStreamFallsBackToExternalURL(t *testing.T) {
	svc := &fakeCatalogService{entries: []models.CatalogEntry{sampleEntry()}}
	res := &fakeResolverService{item: models.ResolvedItem{Title: "Unknown"}}
	h := NewStreamHandler(svc, res)

	rec := doRequest(h.Get, "/stream/movie/hs:sample-show-1.json",
		map[string]string{"id": "hs:sample-show-1.json"})
	var resp models.StreamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if len(resp.Streams) != 1 {
		t.Fatalf("expected exactly one fallback entry, got %d", len(resp.Streams))
	}
	st := resp.Streams[0]
	if st.URL != "" || st.ExternalURL != "https://hstream.moe/hentai/sample-show-1" {
		t.Fatalf("fallback must point externalUrl at the detail page: %+v", st)
	}
	if st.BehaviorHints == nil || !st.BehaviorHints.NotWebReady {
		t.Fatalf("fallback should be flagged notWebReady: %+v", st)
	}
}

func TestStreamUnknownIdentityIs404(t *testing.T) {
	h := NewStreamHandler(&fakeCatalogService{}, &fakeResolverService{})

	rec := doRequest(h.Get, "/stream/movie/hs:nope.json",
		map[string]string{"id": "hs:nope.json"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
