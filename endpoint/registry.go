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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/amqp"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/components/file"
	"github.com/rulego/pollenrich/components/http"
	"github.com/rulego/pollenrich/components/kafka"
	"github.com/rulego/pollenrich/components/memory"
	"github.com/rulego/pollenrich/components/mqtt"
	"github.com/rulego/pollenrich/components/nats"
	"github.com/rulego/pollenrich/components/redis"
	"github.com/rulego/pollenrich/components/sql"
	"github.com/rulego/pollenrich/components/sqs"
	"github.com/rulego/pollenrich/components/timer"
)

// init registers the available components with the Registry.
func init() {
	_ = Registry.Register(&memory.Component{})
	_ = Registry.Register(&file.Component{})
	_ = Registry.Register(&redis.Component{})
	_ = Registry.Register(&kafka.Component{})
	_ = Registry.Register(&amqp.Component{}, "rabbitmq")
	_ = Registry.Register(&nats.Component{})
	_ = Registry.Register(&mqtt.Component{})
	_ = Registry.Register(&sqs.Component{})
	_ = Registry.Register(&sql.Component{})
	_ = Registry.Register(&timer.Component{})
	_ = Registry.Register(&http.Component{}, "https")
}

// Registry is the default registry for components.
var Registry = NewComponentRegistry()

// ComponentRegistry is a registry for components, keyed by scheme.
type ComponentRegistry struct {
	// components holds the registered components by default scheme.
	components map[string]types.Component
	// aliases maps an alias to a default scheme.
	aliases map[string]string
	// started holds the components started by GetComponent.
	started map[string]types.Component
	sync.RWMutex
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]types.Component),
		aliases:    make(map[string]string),
		started:    make(map[string]types.Component),
	}
}

// Register adds a component under its default scheme and the given aliases.
func (r *ComponentRegistry) Register(component types.Component, aliases ...string) error {
	r.Lock()
	defer r.Unlock()
	scheme := strings.ToLower(component.Scheme())
	if scheme == "" {
		return errors.New("the component has no scheme")
	}
	if _, ok := r.components[scheme]; ok {
		return errors.New("the component already exists. scheme=" + scheme)
	}
	for _, alias := range aliases {
		alias = strings.ToLower(alias)
		if _, ok := r.components[alias]; ok {
			return errors.New("the alias is a registered scheme. alias=" + alias)
		}
		if _, ok := r.aliases[alias]; ok {
			return errors.New("the alias already exists. alias=" + alias)
		}
	}
	r.components[scheme] = component
	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = scheme
	}
	return nil
}

// Unregister removes a component and its aliases from the registry.
func (r *ComponentRegistry) Unregister(scheme string) error {
	r.Lock()
	defer r.Unlock()
	scheme = strings.ToLower(scheme)
	if _, ok := r.components[scheme]; !ok {
		return fmt.Errorf("%w. scheme=%s", types.ErrComponentNotFound, scheme)
	}
	delete(r.components, scheme)
	delete(r.started, scheme)
	for alias, target := range r.aliases {
		if target == scheme {
			delete(r.aliases, alias)
		}
	}
	return nil
}

// Get returns the component registered for scheme or one of its aliases.
func (r *ComponentRegistry) Get(scheme string) (types.Component, bool) {
	r.RLock()
	defer r.RUnlock()
	return r.get(scheme)
}

func (r *ComponentRegistry) get(scheme string) (types.Component, bool) {
	scheme = strings.ToLower(scheme)
	if c, ok := r.components[scheme]; ok {
		return c, true
	}
	if target, ok := r.aliases[scheme]; ok {
		c, ok := r.components[target]
		return c, ok
	}
	return nil, false
}

// GetComponent returns the component for scheme, starting it once when autoStart.
func (r *ComponentRegistry) GetComponent(scheme string, autoStart bool) (types.Component, bool) {
	if !autoStart {
		return r.Get(scheme)
	}
	r.Lock()
	defer r.Unlock()
	c, ok := r.get(scheme)
	if !ok {
		return nil, false
	}
	key := strings.ToLower(c.Scheme())
	if _, started := r.started[key]; !started {
		if err := base.StartService(c); err != nil {
			return nil, false
		}
		r.started[key] = c
	}
	return c, true
}

// Schemes returns the default schemes of the registered components, sorted.
func (r *ComponentRegistry) Schemes() []string {
	r.RLock()
	defer r.RUnlock()
	list := make([]string, 0, len(r.components))
	for scheme := range r.components {
		list = append(list, scheme)
	}
	sort.Strings(list)
	return list
}

// Stop stops the components started by GetComponent.
func (r *ComponentRegistry) Stop() error {
	r.Lock()
	started := r.started
	r.started = make(map[string]types.Component)
	r.Unlock()
	var list []interface{}
	for _, c := range started {
		list = append(list, c)
	}
	return base.StopService(list...)
}
