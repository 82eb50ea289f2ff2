package cache

import (
	"time"

	"github.com/rapierpits/HStream-Stremio/models"
)

// Stores bundles the three cache namespaces the addon maintains: accumulated
// catalog sequences keyed by query namespace, per-item meta records keyed by
// identity, and resolved items keyed by normalized detail URL. Each namespace
// carries its own expiry window.
type Stores struct {
	Catalog *Cache[[]models.CatalogEntry]
	Meta    *Cache[models.MetaRecord]
	Items   *Cache[models.ResolvedItem]
}

// NewStores builds the three namespaces with their configured TTLs.
func NewStores(catalogTTL, metaTTL, itemTTL time.Duration) *Stores {
	return &Stores{
		Catalog: New[[]models.CatalogEntry](catalogTTL),
		Meta:    New[models.MetaRecord](metaTTL),
		Items:   New[models.ResolvedItem](itemTTL),
	}
}
