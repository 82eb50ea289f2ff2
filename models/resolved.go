package models

// ResolvedSubtitle is one subtitle track attached to a resolved item.
// Tracks are keyed by language: an explicit download affordance wins over an
// inline <track> element for the same language.
type ResolvedSubtitle struct {
	ID          string `json:"id"`
	Lang        string `json:"lang"`
	DisplayName string `json:"displayName"`
	URL         string `json:"url"`
	Format      string `json:"format,omitempty"`
}

// StreamPayload is one playable stream, ordered by descending quality rank
// within a ResolvedItem.
type StreamPayload struct {
	Label        string             `json:"label"`
	URL          string             `json:"url"`
	DisplayTitle string             `json:"displayTitle"`
	Subtitles    []ResolvedSubtitle `json:"subtitles,omitempty"`
}

// ResolvedItem is the durable output of one stream resolution, cached under
// the normalized detail URL.
type ResolvedItem struct {
	Title          string             `json:"title"`
	OriginalTitle  string             `json:"originalTitle,omitempty"`
	Description    string             `json:"description,omitempty"`
	ReleaseDate    string             `json:"releaseDate,omitempty"`
	Studio         string             `json:"studio,omitempty"`
	Genres         []string           `json:"genres,omitempty"`
	ViewCount      int                `json:"viewCount,omitempty"`
	SequenceNumber int                `json:"sequenceNumber,omitempty"`
	Subtitles      []ResolvedSubtitle `json:"subtitles,omitempty"`
	Streams        []StreamPayload    `json:"streams"`
}

// MetaRecord is the meta-endpoint view of an item: the resolved fields minus
// streams, plus the poster and background carried over from the catalog entry.
type MetaRecord struct {
	Identity       string             `json:"identity"`
	Title          string             `json:"title"`
	OriginalTitle  string             `json:"originalTitle,omitempty"`
	Description    string             `json:"description,omitempty"`
	ReleaseDate    string             `json:"releaseDate,omitempty"`
	Studio         string             `json:"studio,omitempty"`
	Genres         []string           `json:"genres,omitempty"`
	ViewCount      int                `json:"viewCount,omitempty"`
	SequenceNumber int                `json:"sequenceNumber,omitempty"`
	Poster         string             `json:"poster,omitempty"`
	Background     string             `json:"background,omitempty"`
	Subtitles      []ResolvedSubtitle `json:"subtitles,omitempty"`
}
