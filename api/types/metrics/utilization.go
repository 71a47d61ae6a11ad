/*
 * Copyright 2024 The RuleGo Authors.
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

package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// UriStatistics usage of one cached uri.
type UriStatistics struct {
	Uri       string
	Hits      int64
	Misses    int64
	Evictions int64
}

// UtilizationStatistics 消费者缓存利用率统计，按uri记录命中、未命中和淘汰次数
// UtilizationStatistics records per uri hits, misses and evictions of a consumer cache.
type UtilizationStatistics struct {
	mu        sync.RWMutex
	entries   map[string]*UriStatistics
	hits      int64
	misses    int64
	evictions int64
}

func NewUtilizationStatistics() *UtilizationStatistics {
	return &UtilizationStatistics{entries: make(map[string]*UriStatistics)}
}

func (s *UtilizationStatistics) OnHit(uri string) {
	atomic.AddInt64(&s.hits, 1)
	s.update(uri, func(e *UriStatistics) { e.Hits++ })
}

func (s *UtilizationStatistics) OnMiss(uri string) {
	atomic.AddInt64(&s.misses, 1)
	s.update(uri, func(e *UriStatistics) { e.Misses++ })
}

func (s *UtilizationStatistics) OnEvict(uri string) {
	atomic.AddInt64(&s.evictions, 1)
	s.update(uri, func(e *UriStatistics) { e.Evictions++ })
}

func (s *UtilizationStatistics) update(uri string, fn func(e *UriStatistics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[uri]
	if !ok {
		e = &UriStatistics{Uri: uri}
		s.entries[uri] = e
	}
	fn(e)
}

// Get returns a copy of the statistics of uri.
func (s *UtilizationStatistics) Get(uri string) (UriStatistics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[uri]; ok {
		return *e, true
	}
	return UriStatistics{}, false
}

// List returns a copy of all statistics ordered by uri.
func (s *UtilizationStatistics) List() []UriStatistics {
	s.mu.RLock()
	list := make([]UriStatistics, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, *e)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].Uri < list[j].Uri
	})
	return list
}

// Totals returns the hits, misses and evictions over all uris.
func (s *UtilizationStatistics) Totals() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses), atomic.LoadInt64(&s.evictions)
}

// Clear 清除统计数据
func (s *UtilizationStatistics) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*UriStatistics)
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.evictions, 0)
}
