package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/models"
	resolverpkg "github.com/rapierpits/HStream-Stremio/services/resolver"
)

type resolverService interface {
	Resolve(ctx context.Context, detailURL string) models.ResolvedItem
}

var _ resolverService = (*resolverpkg.Service)(nil)

type MetaHandler struct {
	Catalog  catalogService
	Resolver resolverService
	Meta     *cache.Cache[models.MetaRecord]
}

func NewMetaHandler(catalog catalogService, resolver resolverService, meta *cache.Cache[models.MetaRecord]) *MetaHandler {
	return &MetaHandler{Catalog: catalog, Resolver: resolver, Meta: meta}
}

// Get serves /meta/{type}/{id}.json. Unknown identities are 404; a failed
// resolution still yields a meta object from the catalog entry, uncached.
func (h *MetaHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSuffix(mux.Vars(r)["id"], ".json")

	if rec, ok := h.Meta.Get(identity); ok {
		writeJSON(w, models.MetaResponse{Meta: metaDetail(rec)})
		return
	}

	entry, ok := h.Catalog.FindByIdentity(r.Context(), identity)
	if !ok {
		writeJSONError(w, "unknown id", http.StatusNotFound)
		return
	}

	item := h.Resolver.Resolve(r.Context(), entry.DetailURL)
	rec := metaRecord(entry, item)
	if len(item.Streams) > 0 || item.Description != "" {
		h.Meta.Set(identity, rec)
	}
	writeJSON(w, models.MetaResponse{Meta: metaDetail(rec)})
}

// metaRecord projects a resolved item onto its catalog entry. The entry's
// display name backs a degraded resolution's "Unknown" title.
func metaRecord(entry models.CatalogEntry, item models.ResolvedItem) models.MetaRecord {
	title := item.Title
	if title == "" || title == "Unknown" {
		title = entry.DisplayName
	}
	seq := item.SequenceNumber
	if seq == 0 {
		seq = entry.SequenceNumber
	}
	return models.MetaRecord{
		Identity:       entry.Identity,
		Title:          title,
		OriginalTitle:  item.OriginalTitle,
		Description:    item.Description,
		ReleaseDate:    item.ReleaseDate,
		Studio:         item.Studio,
		Genres:         item.Genres,
		ViewCount:      item.ViewCount,
		SequenceNumber: seq,
		Poster:         entry.PosterURL,
		Background:     entry.PosterURL,
		Subtitles:      item.Subtitles,
	}
}

func metaDetail(rec models.MetaRecord) models.MetaDetail {
	release := rec.ReleaseDate
	if len(release) > 4 {
		release = release[:4]
	}
	return models.MetaDetail{
		ID:          rec.Identity,
		Type:        contentType,
		Name:        rec.Title,
		Description: rec.Description,
		Genres:      rec.Genres,
		Poster:      rec.Poster,
		Background:  rec.Background,
		ReleaseInfo: release,
	}
}
