// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (c) 2026 Kesselwerk

package collector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kesselwerk/emscollect/pkg/ems"
)

type cacheKey struct {
	quantity  ems.Quantity
	subsystem ems.Subsystem
}

type cacheItem struct {
	value ems.Value
	stamp time.Time
}

// ValueCache keeps the latest value per (quantity, subsystem). It is
// written by the value subscriber and read by the codec and the cache
// command; all three run on the engine loop, so no locking is needed.
type ValueCache struct {
	items map[cacheKey]cacheItem
	now   func() time.Time
}

// NewValueCache creates an empty cache.
func NewValueCache() *ValueCache {
	return &ValueCache{
		items: make(map[cacheKey]cacheItem),
		now:   time.Now,
	}
}

// HandleValue stores a value as the latest for its key.
func (c *ValueCache) HandleValue(v ems.Value) {
	c.items[cacheKey{v.Quantity, v.Subsystem}] = cacheItem{value: v, stamp: c.now()}
}

// Lookup returns the latest value for a key, or nil.
func (c *ValueCache) Lookup(q ems.Quantity, s ems.Subsystem) *ems.Value {
	item, ok := c.items[cacheKey{q, s}]
	if !ok {
		return nil
	}
	v := item.value
	return &v
}

// Fetch renders all cached values whose subsystem or quantity name
// matches every selector token. An empty selector matches everything.
// Lines are sorted for stable output.
func (c *ValueCache) Fetch(selector []string) []string {
	var lines []string
	for key, item := range c.items {
		quantity := ems.QuantityName(key.quantity)
		subsystem := ems.SubsystemName(key.subsystem)
		if quantity == "" {
			continue
		}
		if !matchesSelector(selector, subsystem, quantity) {
			continue
		}
		name := quantity
		if subsystem != "" {
			name = subsystem + " " + name
		}
		lines = append(lines, fmt.Sprintf("%s %s %d", name,
			ems.FormatValue(item.value), item.stamp.Unix()))
	}
	sort.Strings(lines)
	return lines
}

func matchesSelector(selector []string, subsystem, quantity string) bool {
	for _, token := range selector {
		token = strings.ToLower(token)
		if token != subsystem && token != quantity {
			return false
		}
	}
	return true
}
