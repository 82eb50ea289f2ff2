package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rapierpits/HStream-Stremio/models"
	catalogpkg "github.com/rapierpits/HStream-Stremio/services/catalog"
)

type catalogService interface {
	CatalogSlice(ctx context.Context, offset int, search string, sort models.SortOrder) []models.CatalogEntry
	FindByIdentity(ctx context.Context, identity string) (models.CatalogEntry, bool)
}

var _ catalogService = (*catalogpkg.Service)(nil)

type CatalogHandler struct {
	Service catalogService
}

func NewCatalogHandler(s catalogService) *CatalogHandler {
	return &CatalogHandler{Service: s}
}

// Get serves /catalog/{type}/{id}.json and the extra-bearing variant
// /catalog/{type}/{id}/{extra}.json where extra is "search=...&skip=N".
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := strings.TrimSuffix(vars["id"], ".json")
	sort, ok := sortForCatalogID(id)
	if !ok {
		writeJSONError(w, "unknown catalog", http.StatusNotFound)
		return
	}
	search, skip := parseCatalogExtra(strings.TrimSuffix(vars["extra"], ".json"))

	entries := h.Service.CatalogSlice(r.Context(), skip, search, sort)
	metas := make([]models.MetaPreview, 0, len(entries))
	for _, e := range entries {
		metas = append(metas, models.MetaPreview{
			ID:     e.Identity,
			Type:   contentType,
			Name:   e.DisplayName,
			Poster: e.PosterURL,
		})
	}
	writeJSON(w, models.CatalogResponse{Metas: metas})
}

func sortForCatalogID(id string) (models.SortOrder, bool) {
	switch id {
	case CatalogPopularID:
		return models.SortPopular, true
	case CatalogRecentID:
		return models.SortRecent, true
	}
	return "", false
}

// parseCatalogExtra decodes the query-shaped extra path segment. Malformed
// segments degrade to no search and zero skip.
func parseCatalogExtra(extra string) (search string, skip int) {
	if extra == "" {
		return "", 0
	}
	values, err := url.ParseQuery(extra)
	if err != nil {
		return "", 0
	}
	search = strings.TrimSpace(values.Get("search"))
	if n, err := strconv.Atoi(values.Get("skip")); err == nil && n > 0 {
		skip = n
	}
	return search, skip
}
