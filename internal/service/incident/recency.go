package incident

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// RecencyIndex remembers the last accepted timestamp per (label, source).
// Entries expire after the duplicate window; a miss means "ask the store".
//
// Expiry runs on the wall clock while callers decide with their own "now". The index only
// stores timestamps: Deduplicator compares the stored value against its now, so an entry
// that outlives the window relative to that now never suppresses, and an entry that
// expires early only costs a store lookup.
type RecencyIndex struct {
	entries *cache.Cache
}

// NewRecencyIndex creates an index whose entries live for ttl. Expired entries are
// dropped lazily on lookup, so no background goroutine is started.
func NewRecencyIndex(ttl time.Duration) *RecencyIndex {
	return &RecencyIndex{entries: cache.New(ttl, 0)}
}

// Last returns the last recorded acceptance for key.
func (r *RecencyIndex) Last(key string) (time.Time, bool) {
	v, ok := r.entries.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Record stores t as the last acceptance for key.
func (r *RecencyIndex) Record(key string, t time.Time) {
	r.entries.Set(key, t, cache.DefaultExpiration)
}

// Len returns the number of live entries.
func (r *RecencyIndex) Len() int {
	return r.entries.ItemCount()
}

// Key builds the index key of a (label, source) pair.
func Key(label, sourceID string) string {
	return label + "|" + sourceID
}
