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

// Package pool lends polling consumers to the poll enricher.
//
// Package pool 轮询消费者缓存，按端点出借可复用的消费者。
package pool

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/api/types/metrics"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/uri"
)

// DefaultCapacity 默认缓存容量
const DefaultCapacity = 1000

type entry struct {
	key      string
	endpoint types.Endpoint
	consumer types.PollingConsumer
	// taken 从空闲队列取出出借，移除时不能停止
	taken bool
}

// ConsumerCache 消费者缓存
// ConsumerCache lends one consumer per Acquire and takes it back on Release.
// A consumer is never lent twice at the same time: concurrent acquisitions of the same
// endpoint get distinct consumers. Capacity bounds the number of cached consumers; when it
// is exceeded the least recently used idle consumers are stopped and evicted. Only idle
// consumers live in the lru, lent ones are tracked apart and are never evicted, so the
// cache can stay above capacity until they are released.
//
// Prototype endpoints, and every endpoint when capacity <= 0, get a new consumer per
// Acquire which is stopped on Release.
type ConsumerCache struct {
	base.ServiceSupport
	id       string
	capacity int
	logger   types.Logger

	registerer prometheus.Registerer
	collector  prometheus.Collector
	stats      *metrics.UtilizationStatistics

	// mu guards every field below, lru callbacks run while it is held
	mu        sync.Mutex
	idle      *lru.Cache[*entry, struct{}]
	idleByKey map[string][]*entry
	lent      map[types.PollingConsumer]*entry
	evicted   []*entry
}

var _ metrics.Sizer = (*ConsumerCache)(nil)

// NewConsumerCache creates a cache. id identifies it in logs and metrics.
// The prometheus collector is registered on start when config.Registerer is set.
func NewConsumerCache(id string, capacity int, config types.Config) *ConsumerCache {
	c := &ConsumerCache{
		id:         id,
		capacity:   capacity,
		logger:     config.Logger,
		registerer: config.Registerer,
		stats:      metrics.NewUtilizationStatistics(),
		idleByKey:  make(map[string][]*entry),
		lent:       make(map[types.PollingConsumer]*entry),
	}
	if c.logger == nil {
		c.logger = types.NopLogger()
	}
	if capacity > 0 {
		// 容量为正数时不会返回错误
		c.idle, _ = lru.NewWithEvict[*entry, struct{}](capacity, c.onEvict)
	}
	c.SetHooks(base.Hooks{
		Start:    c.doStart,
		Stop:     c.doStop,
		Shutdown: c.doShutdown,
	})
	return c
}

func (c *ConsumerCache) Capacity() int {
	return c.capacity
}

// Size returns the number of cached consumers, idle or in use.
func (c *ConsumerCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleLenLocked() + len(c.lent)
}

// InUse returns the number of cached consumers currently lent.
func (c *ConsumerCache) InUse() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lent)
}

// Statistics returns the per uri utilization statistics.
func (c *ConsumerCache) Statistics() *metrics.UtilizationStatistics {
	return c.stats
}

// Acquire lends a started consumer for endpoint. The caller must Release it.
func (c *ConsumerCache) Acquire(endpoint types.Endpoint) (types.PollingConsumer, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("cannot acquire a consumer for a nil endpoint")
	}
	key := endpoint.Key()
	if c.isPrototype(endpoint) {
		c.stats.OnMiss(key)
		return c.newConsumer(endpoint)
	}

	c.mu.Lock()
	if e := c.takeIdleLocked(key); e != nil {
		c.lent[e.consumer] = e
		c.mu.Unlock()
		c.stats.OnHit(key)
		return e.consumer, nil
	}
	c.mu.Unlock()

	consumer, err := c.newConsumer(endpoint)
	if err != nil {
		return nil, err
	}
	c.stats.OnMiss(key)

	c.mu.Lock()
	c.lent[consumer] = &entry{key: key, endpoint: endpoint, consumer: consumer}
	evicted := c.trimLocked()
	c.mu.Unlock()

	c.stopEvicted(evicted)
	return consumer, nil
}

// Release takes back a consumer returned by Acquire.
func (c *ConsumerCache) Release(endpoint types.Endpoint, consumer types.PollingConsumer) {
	if endpoint == nil || consumer == nil {
		return
	}
	if c.isPrototype(endpoint) {
		if err := consumer.Stop(); err != nil {
			c.logger.Warnf("error stopping prototype consumer for %s: %v", uri.Sanitize(endpoint.URI()), err)
		}
		if endpoint.Scope() == types.ScopePrototype {
			if err := base.StopAndShutdownService(endpoint); err != nil {
				c.logger.Warnf("error shutting down prototype endpoint %s: %v", uri.Sanitize(endpoint.URI()), err)
			}
		}
		return
	}

	c.mu.Lock()
	e, found := c.lent[consumer]
	var evicted []*entry
	if found {
		delete(c.lent, consumer)
		e.taken = false
		c.idleByKey[e.key] = append(c.idleByKey[e.key], e)
		c.idle.Add(e, struct{}{})
		evicted = c.trimLocked()
	}
	c.mu.Unlock()

	if !found {
		// 不属于缓存的消费者（例如缓存已停止），直接停止
		if err := consumer.Stop(); err != nil {
			c.logger.Warnf("error stopping consumer for %s: %v", uri.Sanitize(endpoint.URI()), err)
		}
		return
	}
	c.stopEvicted(evicted)
}

func (c *ConsumerCache) isPrototype(endpoint types.Endpoint) bool {
	return endpoint.Scope() == types.ScopePrototype || c.capacity <= 0
}

func (c *ConsumerCache) newConsumer(endpoint types.Endpoint) (types.PollingConsumer, error) {
	consumer, err := endpoint.CreatePollingConsumer()
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, fmt.Errorf("endpoint %s created no consumer", uri.Sanitize(endpoint.URI()))
	}
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		return nil, err
	}
	return consumer, nil
}

func (c *ConsumerCache) idleLenLocked() int {
	if c.idle == nil {
		return 0
	}
	return c.idle.Len()
}

// takeIdleLocked removes the most recently released idle entry of key from the lru.
func (c *ConsumerCache) takeIdleLocked(key string) *entry {
	entries := c.idleByKey[key]
	if len(entries) == 0 {
		return nil
	}
	e := entries[len(entries)-1]
	c.unindexLocked(e)
	e.taken = true
	c.idle.Remove(e)
	return e
}

// trimLocked evicts the least recently used idle entries while the cache is over capacity
// and returns every entry evicted since the last call.
func (c *ConsumerCache) trimLocked() []*entry {
	for c.idleLenLocked() > 0 && c.idle.Len()+len(c.lent) > c.capacity {
		c.idle.RemoveOldest()
	}
	evicted := c.evicted
	c.evicted = nil
	return evicted
}

// onEvict is called by the lru with mu held.
func (c *ConsumerCache) onEvict(e *entry, _ struct{}) {
	if e.taken {
		return
	}
	c.unindexLocked(e)
	c.evicted = append(c.evicted, e)
}

func (c *ConsumerCache) unindexLocked(e *entry) {
	entries := c.idleByKey[e.key]
	for i, x := range entries {
		if x == e {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(c.idleByKey, e.key)
	} else {
		c.idleByKey[e.key] = entries
	}
}

func (c *ConsumerCache) stopEvicted(evicted []*entry) {
	for _, e := range evicted {
		c.stats.OnEvict(e.key)
		if c.logger.IsDebugEnabled() {
			c.logger.Debugf("evicting idle consumer for %s", uri.Sanitize(e.endpoint.URI()))
		}
		if err := e.consumer.Stop(); err != nil {
			c.logger.Warnf("error stopping evicted consumer for %s: %v", uri.Sanitize(e.endpoint.URI()), err)
		}
	}
}

func (c *ConsumerCache) doStart() error {
	if c.registerer != nil {
		c.collector = metrics.NewCacheCollector(c.id, c.stats, c)
		if err := c.registerer.Register(c.collector); err != nil {
			c.logger.Warnf("cannot register consumer cache metrics %s: %v", c.id, err)
			c.collector = nil
		}
	}
	return nil
}

// doStop stops every cached consumer, including those still lent.
func (c *ConsumerCache) doStop() error {
	c.mu.Lock()
	var consumers []interface{}
	for consumer := range c.lent {
		consumers = append(consumers, consumer)
	}
	c.lent = make(map[types.PollingConsumer]*entry)
	if c.idle != nil {
		c.idle.Purge()
	}
	for _, e := range c.evicted {
		consumers = append(consumers, e.consumer)
	}
	c.evicted = nil
	c.idleByKey = make(map[string][]*entry)
	c.mu.Unlock()

	if c.registerer != nil && c.collector != nil {
		c.registerer.Unregister(c.collector)
		c.collector = nil
	}
	return base.StopService(consumers...)
}

func (c *ConsumerCache) doShutdown() error {
	c.stats.Clear()
	return nil
}

func (c *ConsumerCache) String() string {
	return fmt.Sprintf("ConsumerCache[%s, capacity=%d]", c.id, c.capacity)
}
