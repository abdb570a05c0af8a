package compiler

import (
	"sort"
	"strings"
	"sync"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// Cached memoizes Compile results per (system mapping, overload set)
// snapshot. Compile is pure, so caching is safe; callers must ClearCache
// whenever mappings or role-system attribute assignments change.
type Cached struct {
	mu    sync.RWMutex
	cache map[string][]EffectiveAttribute
}

// NewCached creates an empty compile cache.
func NewCached() *Cached {
	return &Cached{cache: map[string][]EffectiveAttribute{}}
}

// Compile returns the effective attribute set for the mapping, computing and
// caching it on first use.
func (c *Cached) Compile(systemMappingID string, defaults []models.AttributeMapping, overloads []models.RoleAttributeMapping) ([]EffectiveAttribute, error) {
	key := cacheKey(systemMappingID, overloads)

	c.mu.RLock()
	if cached, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	compiled, err := Compile(defaults, overloads)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = compiled
	c.mu.Unlock()

	return compiled, nil
}

// ClearCache drops every cached compilation.
func (c *Cached) ClearCache() {
	c.mu.Lock()
	c.cache = map[string][]EffectiveAttribute{}
	c.mu.Unlock()
}

func cacheKey(systemMappingID string, overloads []models.RoleAttributeMapping) string {
	ids := make([]string, 0, len(overloads))
	for _, ov := range overloads {
		ids = append(ids, ov.ID)
	}
	sort.Strings(ids)
	return systemMappingID + ":" + strings.Join(ids, ",")
}
