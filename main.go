package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rapierpits/HStream-Stremio/api"
	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/handlers"
	"github.com/rapierpits/HStream-Stremio/internal/browser"
	"github.com/rapierpits/HStream-Stremio/internal/cache"
	"github.com/rapierpits/HStream-Stremio/services/catalog"
	"github.com/rapierpits/HStream-Stremio/services/resolver"
)

const version = "1.0.0"

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	configFlag := flag.String("config", "", "path to settings file")
	flag.Parse()

	fmt.Println("HStream addon starting...")

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("HSTREAM_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	stores := cache.NewStores(
		settings.Cache.CatalogTTL(),
		settings.Cache.MetaTTL(),
		settings.Cache.StreamTTL(),
	)

	sessions := browser.NewProvider(settings.Site, settings.Browser)
	detailRenderer := browser.NewDetailRenderer(settings.Site, settings.Browser)

	catalogSvc := catalog.NewService(settings.Site, settings.Crawl, sessions, stores.Catalog)
	resolverSvc := resolver.NewService(settings.Site, detailRenderer, stores.Items)

	manifestHandler := handlers.NewManifestHandler(version)
	catalogHandler := handlers.NewCatalogHandler(catalogSvc)
	metaHandler := handlers.NewMetaHandler(catalogSvc, resolverSvc, stores.Meta)
	streamHandler := handlers.NewStreamHandler(catalogSvc, resolverSvc)

	r := mux.NewRouter()
	api.Register(r, manifestHandler, catalogHandler, metaHandler, streamHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// Catalog crawls can hold a request for several minutes on a cold
		// cache; the write timeout has to cover a full crawl.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
