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
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fixedSizer struct{ size, capacity int }

func (s fixedSizer) Size() int     { return s.size }
func (s fixedSizer) Capacity() int { return s.capacity }

func TestEnricherMetrics(t *testing.T) {
	m := NewEnricherMetrics()
	m.IncrementCurrent()
	m.IncrementTotal()
	m.IncrementSuccess()
	m.IncrementTotal()
	m.IncrementFailed()
	m.IncrementSkipped()
	m.DecrementCurrent()
	got := m.Get()
	assert.Equal(t, int64(0), got.Current)
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, int64(1), got.Failed)
	assert.Equal(t, int64(1), got.Success)
	assert.Equal(t, int64(1), got.Skipped)
	m.Reset()
	assert.Equal(t, EnricherMetrics{}, m.Get())
}

func TestUtilizationStatistics(t *testing.T) {
	s := NewUtilizationStatistics()
	s.OnMiss("res:b")
	s.OnHit("res:b")
	s.OnHit("res:b")
	s.OnMiss("res:a")
	s.OnEvict("res:a")

	b, ok := s.Get("res:b")
	assert.True(t, ok)
	assert.Equal(t, UriStatistics{Uri: "res:b", Hits: 2, Misses: 1}, b)

	list := s.List()
	assert.Equal(t, 2, len(list))
	assert.Equal(t, "res:a", list[0].Uri)

	hits, misses, evictions := s.Totals()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, int64(1), evictions)

	s.Clear()
	_, ok = s.Get("res:b")
	assert.False(t, ok)
	hits, _, _ = s.Totals()
	assert.Equal(t, int64(0), hits)
}

func TestCacheCollector(t *testing.T) {
	s := NewUtilizationStatistics()
	s.OnMiss("res:a")
	s.OnHit("res:a")
	c := NewCacheCollector("test", s, fixedSizer{size: 1, capacity: 10})

	reg := prometheus.NewPedanticRegistry()
	assert.Nil(t, reg.Register(c))

	expected := `
# HELP pollenrich_consumer_cache_hits_total Number of consumer acquisitions served from the cache.
# TYPE pollenrich_consumer_cache_hits_total counter
pollenrich_consumer_cache_hits_total{cache="test",uri="res:a"} 1
# HELP pollenrich_consumer_cache_size Number of consumers held by the cache.
# TYPE pollenrich_consumer_cache_size gauge
pollenrich_consumer_cache_size{cache="test"} 1
`
	assert.Nil(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"pollenrich_consumer_cache_hits_total", "pollenrich_consumer_cache_size"))
}

func TestEnricherCollector(t *testing.T) {
	m := NewEnricherMetrics()
	m.IncrementTotal()
	m.IncrementTotal()
	c := NewEnricherCollector("e1", m)
	assert.Equal(t, 5, testutil.CollectAndCount(c))
}
