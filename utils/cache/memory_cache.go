/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides an in-memory types.Cache with per key expiration.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rulego/pollenrich/api/types"
)

var _ types.Cache = (*MemoryCache)(nil)

// MemoryCache is an in-memory cache. Expired items are invisible immediately and removed by
// a collector goroutine that runs only while expirable items exist.
type MemoryCache struct {
	items      map[string]item
	mu         sync.RWMutex
	stopGc     chan struct{}
	ticker     *time.Ticker
	gcInterval time.Duration
}

// item expiration is a unix nano timestamp, 0 never expires.
type item struct {
	value      interface{}
	expiration int64
}

func (it item) expired(now int64) bool {
	return it.expiration > 0 && now > it.expiration
}

// NewMemoryCache creates a cache collecting expired items every gcInterval, 5 minutes when
// gcInterval <= 0.
func NewMemoryCache(gcInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]item),
		gcInterval: time.Minute * 5,
	}
	if gcInterval > 0 {
		c.gcInterval = gcInterval
	}
	return c
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiration: expiration}
	startGC := expiration > 0 && c.ticker == nil
	c.mu.Unlock()
	if startGC {
		c.StartGC()
	}
}

func (c *MemoryCache) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	if !found || it.expired(time.Now().UnixNano()) {
		return nil
	}
	return it.value
}

func (c *MemoryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	return found && !it.expired(time.Now().UnixNano())
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *MemoryCache) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// StartGC 启动过期数据回收协程，已经启动或者没有可过期的数据时不做任何操作
func (c *MemoryCache) StartGC() {
	c.mu.Lock()
	if c.ticker != nil || !c.hasExpirable() {
		c.mu.Unlock()
		return
	}
	ticker := time.NewTicker(c.gcInterval)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stopGc = stop
	c.mu.Unlock()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.deleteExpired()
			case <-stop:
				return
			}
		}
	}()
}

// StopGC 停止回收协程，可以多次调用
func (c *MemoryCache) StopGC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *MemoryCache) stopLocked() {
	if c.ticker == nil {
		return
	}
	close(c.stopGc)
	c.ticker = nil
	c.stopGc = nil
}

func (c *MemoryCache) hasExpirable() bool {
	for _, it := range c.items {
		if it.expiration > 0 {
			return true
		}
	}
	return false
}

// deleteExpired removes the expired items and stops the collector when nothing can expire anymore.
func (c *MemoryCache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
		}
	}
	if !c.hasExpirable() {
		c.stopLocked()
	}
}
