package transport

import (
	"net/netip"
	"sync/atomic"

	"github.com/opd-ai/udptun/routing"
)

// RouteEntry is a resolved route plus the source address it was derived
// from. Entries are immutable once published.
type RouteEntry struct {
	Route routing.Route
	Src   netip.Addr
}

// RouteCache holds the cached route for one address family of one peer.
// Readers load a snapshot once per operation; replacement is a single
// atomic store, so a concurrent reader sees either the full old entry or
// the full new one. The cache itself takes no locks; callers hold the
// surrounding read section.
type RouteCache struct {
	entry atomic.Pointer[RouteEntry]
}

// Get returns the current entry, nil when the cache is empty.
func (c *RouteCache) Get() *RouteEntry {
	return c.entry.Load()
}

// Set publishes a new entry.
func (c *RouteCache) Set(e *RouteEntry) {
	c.entry.Store(e)
}

// Reset invalidates the cache.
func (c *RouteCache) Reset() {
	c.entry.Store(nil)
}

// cachedRoute returns the cache entry if it is still trusted for output:
// the source address it was derived from must still be confirmed assignable
// on the local host for the family. An untrusted entry is invalidated
// before the caller performs a fresh lookup, so no transmit ever reuses a
// stale source address.
func cachedRoute(cache *RouteCache, r routing.Router, fam routing.Family) *RouteEntry {
	e := cache.Get()
	if e == nil {
		return nil
	}
	if !e.Src.IsValid() || !r.ConfirmSourceAddr(e.Src, fam) {
		cache.Reset()
		return nil
	}
	return e
}
