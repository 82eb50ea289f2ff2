package models

// Stremio addon protocol wire shapes. Only the fields this addon emits are
// modelled; the protocol tolerates missing optional fields.

type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
	IDPrefixes  []string          `json:"idPrefixes"`
}

type ManifestCatalog struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra []CatalogExtra `json:"extra,omitempty"`
}

type CatalogExtra struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"isRequired,omitempty"`
}

// MetaPreview is the catalog projection of one item.
type MetaPreview struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Poster string `json:"poster,omitempty"`
}

type CatalogResponse struct {
	Metas []MetaPreview `json:"metas"`
}

// MetaDetail is the full meta object served for one item.
type MetaDetail struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
}

type MetaResponse struct {
	Meta MetaDetail `json:"meta"`
}

// StreamItem is one playable (or externally openable) stream. Exactly one of
// URL and ExternalURL is set.
type StreamItem struct {
	Name          string               `json:"name,omitempty"`
	Title         string               `json:"title,omitempty"`
	URL           string               `json:"url,omitempty"`
	ExternalURL   string               `json:"externalUrl,omitempty"`
	Subtitles     []StreamSubtitle     `json:"subtitles,omitempty"`
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

type StreamBehaviorHints struct {
	NotWebReady bool `json:"notWebReady,omitempty"`
}

type StreamSubtitle struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type StreamResponse struct {
	Streams []StreamItem `json:"streams"`
}
