package models

// SortOrder selects how the source site orders its listing pages.
type SortOrder string

const (
	SortPopular SortOrder = "popular"
	SortRecent  SortOrder = "recent"
)

// SiteToken returns the order token the site expects in listing URLs.
func (s SortOrder) SiteToken() string {
	if s == SortRecent {
		return "recently-released"
	}
	return "view-count"
}

// CatalogEntry is one normalized listing record. Identity is stable across
// crawls: it is derived from the detail URL slug plus the optional episode
// suffix, so the same physical item always maps to the same identity.
type CatalogEntry struct {
	Identity       string `json:"identity"`
	DisplayName    string `json:"displayName"`
	PosterURL      string `json:"posterUrl"`
	DetailURL      string `json:"detailUrl"`
	SequenceNumber int    `json:"sequenceNumber,omitempty"`
}
