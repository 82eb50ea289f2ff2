package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Settings represents the addon configuration persisted to disk.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	Site    SiteSettings    `json:"site"`
	Crawl   CrawlSettings   `json:"crawl"`
	Cache   CacheSettings   `json:"cache"`
	Browser BrowserSettings `json:"browser"`
	Log     LogConfig       `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SiteSettings identifies the crawled source site.
type SiteSettings struct {
	Origin    string `json:"origin"`
	UserAgent string `json:"userAgent"`
}

// CrawlSettings bounds the catalog crawl.
type CrawlSettings struct {
	PageSize         int `json:"pageSize"`         // records per catalog slice and per listing page
	MaxPages         int `json:"maxPages"`         // hard ceiling on pages crawled per namespace
	BatchSize        int `json:"batchSize"`        // concurrent pages per rendering session
	RetryAttempts    int `json:"retryAttempts"`    // navigation attempts before giving up on a page
	RetryDelayMillis int `json:"retryDelayMillis"` // fixed back-off between navigation attempts
}

func (c CrawlSettings) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// CacheSettings holds per-namespace expiry windows. All caches are in-memory
// only; nothing survives a restart.
type CacheSettings struct {
	CatalogTTLMinutes int `json:"catalogTtlMinutes"`
	MetaTTLMinutes    int `json:"metaTtlMinutes"`
	StreamTTLMinutes  int `json:"streamTtlMinutes"`
}

func (c CacheSettings) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLMinutes) * time.Minute
}

func (c CacheSettings) MetaTTL() time.Duration {
	return time.Duration(c.MetaTTLMinutes) * time.Minute
}

func (c CacheSettings) StreamTTL() time.Duration {
	return time.Duration(c.StreamTTLMinutes) * time.Minute
}

// BrowserSettings configures the headless-chrome rendering sessions.
type BrowserSettings struct {
	ExecPath               string `json:"execPath,omitempty"` // empty = let chromedp discover the binary
	Headless               bool   `json:"headless"`
	NavTimeoutSeconds      int    `json:"navTimeoutSeconds"`
	SelectorTimeoutSeconds int    `json:"selectorTimeoutSeconds"`
	SettleDelayMillis      int    `json:"settleDelayMillis"` // post-load quiescence wait on detail pages
}

func (b BrowserSettings) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSeconds) * time.Second
}

func (b BrowserSettings) SelectorTimeout() time.Duration {
	return time.Duration(b.SelectorTimeoutSeconds) * time.Second
}

func (b BrowserSettings) SettleDelay() time.Duration {
	return time.Duration(b.SettleDelayMillis) * time.Millisecond
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 7010,
		},
		Site: SiteSettings{
			Origin:    "https://hstream.moe",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Crawl: CrawlSettings{
			PageSize:         500,
			MaxPages:         20,
			BatchSize:        5,
			RetryAttempts:    3,
			RetryDelayMillis: 1500,
		},
		Cache: CacheSettings{
			CatalogTTLMinutes: 30,
			MetaTTLMinutes:    360,
			StreamTTLMinutes:  180,
		},
		Browser: BrowserSettings{
			Headless:               true,
			NavTimeoutSeconds:      30,
			SelectorTimeoutSeconds: 10,
			SettleDelayMillis:      2000,
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    50, // MB per file
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings() // unset fields keep their defaults
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
