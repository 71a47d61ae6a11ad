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

package pollenrich

import (
	"errors"
	"plugin"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/endpoint"
)

// PluginsSymbol 插件检查点 Symbol
const PluginsSymbol = "Plugins"

// PluginRegistry is the symbol a go plugin exports to contribute components.
type PluginRegistry interface {
	Components() []types.Component
}

// Register 注册组件到默认组件注册器，aliases 为组件的别名
func Register(component types.Component, aliases ...string) error {
	return endpoint.Registry.Register(component, aliases...)
}

// Unregister 删除默认组件注册器中的组件
func Unregister(scheme string) error {
	return endpoint.Registry.Unregister(scheme)
}

// RegisterPlugin 加载go插件，注册插件中的所有组件
func RegisterPlugin(file string) error {
	registry, err := loadPlugin(file)
	if err != nil {
		return err
	}
	components := registry.Components()
	for _, c := range components {
		if _, ok := endpoint.Registry.Get(c.Scheme()); ok {
			return errors.New("the component already exists. scheme=" + c.Scheme())
		}
	}
	for _, c := range components {
		if err := Register(c); err != nil {
			return err
		}
	}
	return nil
}

// loadPlugin opens file and looks up the exported PluginsSymbol.
func loadPlugin(file string) (PluginRegistry, error) {
	p, err := plugin.Open(file)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(PluginsSymbol)
	if err != nil {
		return nil, err
	}
	registry, ok := sym.(PluginRegistry)
	if !ok {
		return nil, errors.New("invalid plugin")
	}
	return registry, nil
}
