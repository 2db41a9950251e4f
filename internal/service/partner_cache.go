package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type partnerEntry struct {
	partnerID string
	paired    bool
}

// PartnerCache memoizes partner lookups for a short TTL. Unpaired answers are
// cached too. Fills carry the epoch observed before the storage read and are
// dropped if an invalidation happened in between.
type PartnerCache struct {
	mu      sync.Mutex
	epoch   uint64
	entries *expirable.LRU[string, partnerEntry]
}

func NewPartnerCache(size int, ttl time.Duration) *PartnerCache {
	return &PartnerCache{
		entries: expirable.NewLRU[string, partnerEntry](size, nil, ttl),
	}
}

func (c *PartnerCache) Get(accountID string) (partnerID string, paired bool, found bool) {
	entry, ok := c.entries.Get(accountID)
	if !ok {
		return "", false, false
	}
	return entry.partnerID, entry.paired, true
}

func (c *PartnerCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Fill stores the lookup result unless the cache was invalidated after epoch was read.
func (c *PartnerCache) Fill(accountID, partnerID string, paired bool, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}
	c.entries.Add(accountID, partnerEntry{partnerID: partnerID, paired: paired})
	return true
}

func (c *PartnerCache) Invalidate(accountIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for _, id := range accountIDs {
		c.entries.Remove(id)
	}
}
