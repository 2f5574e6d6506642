package hybrid

import "time"

// Metrics is the bit-exact snapshot consumed by the RPC façade and the
// terminal dashboard.
type Metrics struct {
	TotalEntries      uint64
	RAMEntries        uint64
	PersistentEntries uint64
	CacheHitRate      float64
	LastSync          time.Time
	HasSynced         bool
}
