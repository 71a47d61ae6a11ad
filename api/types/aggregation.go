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

package types

// AggregationStrategy 聚合策略，把资源交换合并到原始交换
// AggregationStrategy merges a resource exchange into the original exchange.
// resource is nil when nothing was polled, which is different from a resource exchange
// with an empty body. The returned exchange is copied onto the original; returning nil
// leaves the original untouched.
type AggregationStrategy interface {
	Aggregate(original, resource *Exchange) (*Exchange, error)
}

// AggregationStrategyFunc adapts a function to AggregationStrategy.
type AggregationStrategyFunc func(original, resource *Exchange) (*Exchange, error)

// Aggregate calls f(original, resource).
func (f AggregationStrategyFunc) Aggregate(original, resource *Exchange) (*Exchange, error) {
	return f(original, resource)
}
