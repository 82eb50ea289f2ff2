package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rapierpits/HStream-Stremio/models"
)

type StreamHandler struct {
	Catalog  catalogService
	Resolver resolverService
}

func NewStreamHandler(catalog catalogService, resolver resolverService) *StreamHandler {
	return &StreamHandler{Catalog: catalog, Resolver: resolver}
}

// Get serves /stream/{type}/{id}.json. When no stream resolves the response
// still carries one entry pointing the player at the site itself, so the
// client never renders a dead end.
func (h *StreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSuffix(mux.Vars(r)["id"], ".json")

	entry, ok := h.Catalog.FindByIdentity(r.Context(), identity)
	if !ok {
		writeJSONError(w, "unknown id", http.StatusNotFound)
		return
	}

	item := h.Resolver.Resolve(r.Context(), entry.DetailURL)
	writeJSON(w, models.StreamResponse{Streams: streamItems(entry, item)})
}

func streamItems(entry models.CatalogEntry, item models.ResolvedItem) []models.StreamItem {
	if len(item.Streams) == 0 {
		return []models.StreamItem{{
			Name:          "HStream",
			Title:         "Open in browser",
			ExternalURL:   entry.DetailURL,
			BehaviorHints: &models.StreamBehaviorHints{NotWebReady: true},
		}}
	}
	out := make([]models.StreamItem, 0, len(item.Streams))
	for _, st := range item.Streams {
		out = append(out, models.StreamItem{
			Name:      "HStream " + st.Label,
			Title:     st.DisplayTitle,
			URL:       st.URL,
			Subtitles: streamSubtitles(st.Subtitles),
		})
	}
	return out
}

func streamSubtitles(subs []models.ResolvedSubtitle) []models.StreamSubtitle {
	if len(subs) == 0 {
		return nil
	}
	out := make([]models.StreamSubtitle, 0, len(subs))
	for _, s := range subs {
		out = append(out, models.StreamSubtitle{ID: s.ID, URL: s.URL, Lang: s.Lang})
	}
	return out
}
