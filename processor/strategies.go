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

package processor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/utils/str"
)

// Names of the built-in aggregation strategies.
const (
	StrategyCopy         = "copy"
	StrategyUseOriginal  = "useOriginal"
	StrategyUseLatest    = "useLatest"
	StrategyStringAppend = "stringAppend"
)

// Strategies 聚合策略注册表，按名称创建策略
var Strategies = NewStrategyRegistry()

func init() {
	_ = Strategies.Register(StrategyCopy, func() types.AggregationStrategy { return CopyStrategy{} })
	_ = Strategies.Register(StrategyUseOriginal, func() types.AggregationStrategy { return UseOriginalStrategy{} })
	_ = Strategies.Register(StrategyUseLatest, func() types.AggregationStrategy { return UseLatestStrategy{} })
	_ = Strategies.Register(StrategyStringAppend, func() types.AggregationStrategy { return &StringAppendStrategy{} })
}

// StrategyRegistry creates aggregation strategies by name. Names are case insensitive.
type StrategyRegistry struct {
	mu        sync.RWMutex
	factories map[string]func() types.AggregationStrategy
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{factories: make(map[string]func() types.AggregationStrategy)}
}

// Register adds a strategy factory. It fails when name is already registered.
func (r *StrategyRegistry) Register(name string, factory func() types.AggregationStrategy) error {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("the aggregation strategy already exists. name=%s", name)
	}
	r.factories[key] = factory
	return nil
}

// New creates the strategy registered under name.
func (r *StrategyRegistry) New(name string) (types.AggregationStrategy, bool) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveStrategy turns the aggregationStrategy setting into a strategy:
// a strategy instance, a function, a registered name, or nothing for the copy strategy.
func resolveStrategy(v interface{}) (types.AggregationStrategy, error) {
	switch s := v.(type) {
	case nil:
		return CopyStrategy{}, nil
	case types.AggregationStrategy:
		return s, nil
	case func(original, resource *types.Exchange) (*types.Exchange, error):
		return types.AggregationStrategyFunc(s), nil
	case string:
		if strings.TrimSpace(s) == "" {
			return CopyStrategy{}, nil
		}
		if strategy, ok := Strategies.New(strings.TrimSpace(s)); ok {
			return strategy, nil
		}
		return nil, fmt.Errorf("aggregation strategy not found. name=%s", s)
	default:
		return nil, fmt.Errorf("unsupported aggregation strategy type %T", v)
	}
}

// CopyStrategy 默认聚合策略
// CopyStrategy copies the resource exchange over the original. When nothing was polled the
// body of the original is cleared and its out message dropped, headers are kept.
type CopyStrategy struct{}

func (CopyStrategy) Aggregate(original, resource *types.Exchange) (*types.Exchange, error) {
	if resource != nil {
		copyResultsPreservePattern(original, resource)
		return original, nil
	}
	original.In().Body = nil
	original.SetOut(nil)
	return original, nil
}

// UseOriginalStrategy keeps the original exchange and discards the resource.
type UseOriginalStrategy struct{}

func (UseOriginalStrategy) Aggregate(original, _ *types.Exchange) (*types.Exchange, error) {
	return original, nil
}

// UseLatestStrategy continues with the resource exchange when there is one.
// A failure of the original is carried over to a successful resource exchange.
type UseLatestStrategy struct{}

func (UseLatestStrategy) Aggregate(original, resource *types.Exchange) (*types.Exchange, error) {
	if resource == nil {
		return original, nil
	}
	if !resource.IsFailed() && original.IsFailed() {
		resource.SetErr(original.Err())
	}
	return resource, nil
}

// StringAppendStrategy 把资源消息体以字符串形式追加到原始消息体
// StringAppendStrategy appends the resource body, as a string, to the original body.
type StringAppendStrategy struct {
	// Delimiter is written between the two bodies when both are non empty.
	Delimiter string
}

func (s *StringAppendStrategy) Aggregate(original, resource *types.Exchange) (*types.Exchange, error) {
	if resource == nil {
		return original, nil
	}
	head, err := str.ToStringMaybeErr(original.In().Body)
	if err != nil {
		return nil, err
	}
	tail, err := str.ToStringMaybeErr(resource.In().Body)
	if err != nil {
		return nil, err
	}
	if head != "" && tail != "" {
		head += s.Delimiter
	}
	original.In().Body = head + tail
	return original, nil
}
