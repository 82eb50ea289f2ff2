package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rapierpits/HStream-Stremio/handlers"
)

// corsMiddleware opens the addon to any Stremio client origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register mounts the addon endpoints onto the provided router.
func Register(
	r *mux.Router,
	manifestHandler *handlers.ManifestHandler,
	catalogHandler *handlers.CatalogHandler,
	metaHandler *handlers.MetaHandler,
	streamHandler *handlers.StreamHandler,
) {
	r.Use(corsMiddleware)

	r.HandleFunc("/manifest.json", manifestHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}", catalogHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/catalog/{type}/{id}/{extra}", catalogHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/meta/{type}/{id}", metaHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/stream/{type}/{id}", streamHandler.Get).Methods(http.MethodGet, http.MethodOptions)
}
