/*
 * Copyright 2023 The RuleGo Authors.
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
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/uri"
)

// Ensure that Pool implements the types.EndpointRegistry interface.
var _ types.EndpointRegistry = (*Pool)(nil)

// Pool 端点池，按规范化的uri缓存已启动的端点
// Pool creates endpoints through the components of a ComponentRegistry.
// Pooled endpoints are created once per normalized uri, concurrent requests for the same uri
// share one creation. Prototype endpoints are created on every call and never cached.
type Pool struct {
	base.ServiceSupport
	config    types.Config
	registry  *ComponentRegistry
	mu        sync.RWMutex
	endpoints map[string]types.Endpoint
	group     singleflight.Group
}

// NewPool creates a pool. A nil registry uses the default Registry.
// config is passed to the components and its EndpointRegistry is set to the pool.
func NewPool(config types.Config, registry *ComponentRegistry) *Pool {
	if registry == nil {
		registry = Registry
	}
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	p := &Pool{
		registry:  registry,
		endpoints: make(map[string]types.Endpoint),
	}
	config.EndpointRegistry = p
	p.config = config
	p.SetHooks(base.Hooks{Stop: p.stopEndpoints, Shutdown: p.stopEndpoints})
	return p
}

// Config returns the configuration given to components.
func (p *Pool) Config() types.Config {
	return p.config
}

// Registry returns the component registry of the pool.
func (p *Pool) Registry() *ComponentRegistry {
	return p.registry
}

func (p *Pool) GetEndpoint(rawUri string) (types.Endpoint, error) {
	key, err := uri.Normalize(rawUri)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint uri %s: %w", uri.Sanitize(rawUri), err)
	}
	if e, ok := p.get(key); ok {
		return e, nil
	}
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		if e, ok := p.get(key); ok {
			return e, nil
		}
		e, err := p.create(key, types.ScopePooled)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.endpoints[key] = e
		p.mu.Unlock()
		if p.config.Logger.IsDebugEnabled() {
			p.config.Logger.Debugf("created pooled endpoint: %s", uri.Sanitize(key))
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(types.Endpoint), nil
}

func (p *Pool) GetPrototypeEndpoint(rawUri string) (types.Endpoint, error) {
	key, err := uri.Normalize(rawUri)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint uri %s: %w", uri.Sanitize(rawUri), err)
	}
	return p.create(key, types.ScopePrototype)
}

func (p *Pool) GetComponent(scheme string, autoStart bool) (types.Component, bool) {
	return p.registry.GetComponent(scheme, autoStart)
}

func (p *Pool) get(key string) (types.Endpoint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.endpoints[key]
	return e, ok
}

func (p *Pool) create(key string, scope types.Scope) (types.Endpoint, error) {
	scheme := uri.Scheme(key)
	component, ok := p.registry.GetComponent(scheme, true)
	if !ok {
		return nil, fmt.Errorf("%w. scheme=%s", types.ErrComponentNotFound, scheme)
	}
	e, err := component.CreateEndpoint(p.config, key, scope)
	if err != nil {
		return nil, fmt.Errorf("create endpoint %s: %w", uri.Sanitize(key), err)
	}
	if err := e.Start(); err != nil {
		_ = e.Shutdown()
		return nil, fmt.Errorf("start endpoint %s: %w", uri.Sanitize(key), err)
	}
	return e, nil
}

// Endpoints returns the pooled endpoints ordered by uri.
func (p *Pool) Endpoints() []types.Endpoint {
	p.mu.RLock()
	list := make([]types.Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		list = append(list, e)
	}
	p.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].URI() < list[j].URI()
	})
	return list
}

// Size returns the number of pooled endpoints.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// Remove stops, shuts down and forgets the pooled endpoint of rawUri.
func (p *Pool) Remove(rawUri string) error {
	key, err := uri.Normalize(rawUri)
	if err != nil {
		return err
	}
	p.mu.Lock()
	e, ok := p.endpoints[key]
	delete(p.endpoints, key)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return base.StopAndShutdownService(e)
}

func (p *Pool) stopEndpoints() error {
	p.mu.Lock()
	list := make([]interface{}, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		list = append(list, e)
	}
	p.endpoints = make(map[string]types.Endpoint)
	p.mu.Unlock()
	return base.StopAndShutdownService(list...)
}
