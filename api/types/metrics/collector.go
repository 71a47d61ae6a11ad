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
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pollenrich"

// Sizer reports the occupancy of a consumer cache.
type Sizer interface {
	Size() int
	Capacity() int
}

// CacheCollector exports UtilizationStatistics as prometheus metrics labelled by uri.
type CacheCollector struct {
	stats *UtilizationStatistics
	sizer Sizer

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	size      *prometheus.Desc
	capacity  *prometheus.Desc
}

var _ prometheus.Collector = (*CacheCollector)(nil)

// NewCacheCollector creates a collector. id is added as the const label "cache".
func NewCacheCollector(id string, stats *UtilizationStatistics, sizer Sizer) *CacheCollector {
	labels := prometheus.Labels{"cache": id}
	return &CacheCollector{
		stats: stats,
		sizer: sizer,
		hits: prometheus.NewDesc(prometheus.BuildFQName(namespace, "consumer_cache", "hits_total"),
			"Number of consumer acquisitions served from the cache.", []string{"uri"}, labels),
		misses: prometheus.NewDesc(prometheus.BuildFQName(namespace, "consumer_cache", "misses_total"),
			"Number of consumer acquisitions that created a new consumer.", []string{"uri"}, labels),
		evictions: prometheus.NewDesc(prometheus.BuildFQName(namespace, "consumer_cache", "evictions_total"),
			"Number of idle consumers evicted from the cache.", []string{"uri"}, labels),
		size: prometheus.NewDesc(prometheus.BuildFQName(namespace, "consumer_cache", "size"),
			"Number of consumers held by the cache.", nil, labels),
		capacity: prometheus.NewDesc(prometheus.BuildFQName(namespace, "consumer_cache", "capacity"),
			"Maximum number of idle consumers kept by the cache.", nil, labels),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.size
	ch <- c.capacity
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.stats.List() {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), s.Uri)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), s.Uri)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), s.Uri)
	}
	if c.sizer != nil {
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(c.sizer.Size()))
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(c.sizer.Capacity()))
	}
}

// EnricherCollector exports EnricherMetrics.
type EnricherCollector struct {
	metrics *EnricherMetrics
	current *prometheus.Desc
	total   *prometheus.Desc
	failed  *prometheus.Desc
	success *prometheus.Desc
	skipped *prometheus.Desc
}

var _ prometheus.Collector = (*EnricherCollector)(nil)

// NewEnricherCollector creates a collector. id is added as the const label "enricher".
func NewEnricherCollector(id string, m *EnricherMetrics) *EnricherCollector {
	labels := prometheus.Labels{"enricher": id}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "enricher", name), help, nil, labels)
	}
	return &EnricherCollector{
		metrics: m,
		current: desc("in_flight", "Number of enrichments in progress."),
		total:   desc("exchanges_total", "Number of processed exchanges."),
		failed:  desc("failed_total", "Number of exchanges that ended failed."),
		success: desc("success_total", "Number of exchanges that ended successfully."),
		skipped: desc("skipped_total", "Number of exchanges whose target evaluated to nothing."),
	}
}

func (c *EnricherCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.current
	ch <- c.total
	ch <- c.failed
	ch <- c.success
	ch <- c.skipped
}

func (c *EnricherCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.metrics.Get()
	ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, float64(m.Current))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(m.Total))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(m.Failed))
	ch <- prometheus.MustNewConstMetric(c.success, prometheus.CounterValue, float64(m.Success))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(m.Skipped))
}
