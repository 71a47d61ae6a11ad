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

// Package metrics holds the counters of the poll enricher and its consumer cache
// and exposes them to prometheus.
package metrics

import (
	"sync/atomic"
)

// EnricherMetrics holds the counters of one poll enricher.
type EnricherMetrics struct {
	Current int64 // Number of enrichments in progress
	Total   int64 // Total number of processed exchanges
	Failed  int64 // Number of exchanges that ended failed
	Success int64 // Number of exchanges that ended successfully
	Skipped int64 // Number of exchanges whose target evaluated to nil
}

// NewEnricherMetrics creates a new instance of EnricherMetrics.
func NewEnricherMetrics() *EnricherMetrics {
	return &EnricherMetrics{}
}

// IncrementCurrent increases the count of current enrichments.
func (m *EnricherMetrics) IncrementCurrent() {
	atomic.AddInt64(&m.Current, 1)
}

// DecrementCurrent decreases the count of current enrichments.
func (m *EnricherMetrics) DecrementCurrent() {
	atomic.AddInt64(&m.Current, -1)
}

// IncrementTotal increases the total count of enrichments.
func (m *EnricherMetrics) IncrementTotal() {
	atomic.AddInt64(&m.Total, 1)
}

// IncrementFailed increases the count of failed enrichments.
func (m *EnricherMetrics) IncrementFailed() {
	atomic.AddInt64(&m.Failed, 1)
}

// IncrementSuccess increases the count of successful enrichments.
func (m *EnricherMetrics) IncrementSuccess() {
	atomic.AddInt64(&m.Success, 1)
}

// IncrementSkipped increases the count of skipped enrichments.
func (m *EnricherMetrics) IncrementSkipped() {
	atomic.AddInt64(&m.Skipped, 1)
}

// Get returns a copy of the current metrics.
func (m *EnricherMetrics) Get() EnricherMetrics {
	return EnricherMetrics{
		Current: atomic.LoadInt64(&m.Current),
		Total:   atomic.LoadInt64(&m.Total),
		Failed:  atomic.LoadInt64(&m.Failed),
		Success: atomic.LoadInt64(&m.Success),
		Skipped: atomic.LoadInt64(&m.Skipped),
	}
}

// Reset resets all metrics to zero.
func (m *EnricherMetrics) Reset() {
	atomic.StoreInt64(&m.Current, 0)
	atomic.StoreInt64(&m.Total, 0)
	atomic.StoreInt64(&m.Failed, 0)
	atomic.StoreInt64(&m.Success, 0)
	atomic.StoreInt64(&m.Skipped, 0)
}
