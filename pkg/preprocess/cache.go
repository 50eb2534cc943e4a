package preprocess

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of preprocessed volumes kept by default.
const DefaultCacheSize = 16

// resultCache memoizes results by key. Concurrent misses on one key share a
// single computation; misses on different keys run independently. Failed
// computations are not stored.
type resultCache struct {
	entries *lru.Cache[string, *Result]
	group   singleflight.Group
}

func newResultCache(size int) *resultCache {
	if size < 1 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	entries, _ := lru.New[string, *Result](size)
	return &resultCache{entries: entries}
}

// get returns the cached result for key, computing it with load on a miss.
// hit reports whether the result was already cached.
func (c *resultCache) get(key string, load func() (*Result, error)) (res *Result, hit bool, err error) {
	if r, ok := c.entries.Get(key); ok {
		return r, true, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A caller that lost the race may arrive after the result landed.
		if r, ok := c.entries.Get(key); ok {
			return r, nil
		}
		r, err := load()
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, r)
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Result), false, nil
}

func (c *resultCache) len() int { return c.entries.Len() }

func (c *resultCache) contains(key string) bool { return c.entries.Contains(key) }

func (c *resultCache) purge() { c.entries.Purge() }
