package handlers

import (
	"net/http"

	"github.com/rapierpits/HStream-Stremio/models"
)

const (
	CatalogPopularID = "hstream-popular"
	CatalogRecentID  = "hstream-recent"

	identityPrefix = "hs:"
	contentType    = "movie"
)

type ManifestHandler struct {
	Version string
}

func NewManifestHandler(version string) *ManifestHandler {
	return &ManifestHandler{Version: version}
}

func (h *ManifestHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, models.Manifest{
		ID:          "moe.hstream.stremio",
		Version:     h.Version,
		Name:        "HStream",
		Description: "Hentai catalog and streams from hstream.moe",
		Resources:   []string{"catalog", "meta", "stream"},
		Types:       []string{contentType},
		Catalogs: []models.ManifestCatalog{
			{
				Type: contentType,
				ID:   CatalogPopularID,
				Name: "HStream Popular",
				Extra: []models.CatalogExtra{
					{Name: "search"},
					{Name: "skip"},
				},
			},
			{
				Type: contentType,
				ID:   CatalogRecentID,
				Name: "HStream Recent",
				Extra: []models.CatalogExtra{
					{Name: "search"},
					{Name: "skip"},
				},
			},
		},
		IDPrefixes: []string{identityPrefix},
	})
}
