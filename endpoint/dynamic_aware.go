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

package endpoint

import (
	"strings"
	"sync"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

var _ types.DynamicAwareResolver = (*DynamicAwareTable)(nil)

// DynamicAwareTable 动态端点优化器查找表
// DynamicAwareTable resolves the optimizer of a scheme. Only default schemes are looked up:
// resolving an alias is left to the caller, which falls back to the default scheme of the
// component and renames the optimizer. Every Resolve returns a new optimizer instance.
type DynamicAwareTable struct {
	base.ServiceSupport
	registry  *ComponentRegistry
	mu        sync.RWMutex
	factories map[string]func() types.PollDynamicAware
}

// NewDynamicAwareTable creates a table backed by the DynamicAwareComponent of registry.
// A nil registry uses the default Registry.
func NewDynamicAwareTable(registry *ComponentRegistry) *DynamicAwareTable {
	if registry == nil {
		registry = Registry
	}
	return &DynamicAwareTable{
		registry:  registry,
		factories: make(map[string]func() types.PollDynamicAware),
	}
}

// Register adds an optimizer factory for scheme, taking precedence over the component.
func (t *DynamicAwareTable) Register(scheme string, factory func() types.PollDynamicAware) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[strings.ToLower(scheme)] = factory
}

func (t *DynamicAwareTable) Resolve(scheme string) (types.PollDynamicAware, bool) {
	scheme = strings.ToLower(scheme)
	t.mu.RLock()
	factory, ok := t.factories[scheme]
	t.mu.RUnlock()
	if ok {
		if da := factory(); da != nil {
			return da, true
		}
		return nil, false
	}

	t.registry.RLock()
	component, ok := t.registry.components[scheme]
	t.registry.RUnlock()
	if !ok {
		return nil, false
	}
	if dac, ok := component.(types.DynamicAwareComponent); ok {
		if da := dac.NewPollDynamicAware(); da != nil {
			return da, true
		}
	}
	return nil, false
}
