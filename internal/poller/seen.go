package poller

import (
	"time"

	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/patrickmn/go-cache"
)

// SeenSet remembers emitted instance ids for the life of the process, or for
// ttl when it is positive.
type SeenSet struct {
	items *cache.Cache
}

func NewSeenSet(ttl time.Duration) *SeenSet {
	exp := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		exp = ttl
		cleanup = ttl
	}
	return &SeenSet{items: cache.New(exp, cleanup)}
}

// Has reports whether inst was already recorded. Instances without an id are never seen.
func (s *SeenSet) Has(inst instance.Instance) bool {
	key, ok := seenKey(inst)
	if !ok {
		return false
	}
	_, found := s.items.Get(key)
	return found
}

// Add records inst and reports whether it was new. Instances without an id are always new.
func (s *SeenSet) Add(inst instance.Instance) bool {
	key, ok := seenKey(inst)
	if !ok {
		return true
	}
	return s.items.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}

func seenKey(inst instance.Instance) (string, bool) {
	id := inst.ID()
	if id == "" {
		return "", false
	}
	return inst.Namespace + "/" + inst.EntityType + "/" + id, true
}

func (s *SeenSet) Len() int { return s.items.ItemCount() }
