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

package types

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option is a function type that modifies the Config.
type Option func(*Config) error

// WithLogger is an option that sets the logger of the Config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithProperties is an option that sets the placeholder resolver of the Config.
func WithProperties(properties PropertiesResolver) Option {
	return func(c *Config) error {
		c.Properties = properties
		return nil
	}
}

// WithHeadersFactory is an option that sets the headers factory of the Config.
func WithHeadersFactory(factory HeadersFactory) Option {
	return func(c *Config) error {
		c.HeadersFactory = factory
		return nil
	}
}

// WithEndpointRegistry is an option that sets the endpoint registry of the Config.
func WithEndpointRegistry(registry EndpointRegistry) Option {
	return func(c *Config) error {
		c.EndpointRegistry = registry
		return nil
	}
}

// WithDynamicAwareResolver is an option that sets the optimizer lookup table of the Config.
func WithDynamicAwareResolver(resolver DynamicAwareResolver) Option {
	return func(c *Config) error {
		c.DynamicAwareResolver = resolver
		return nil
	}
}

// WithPool is an option that sets the pool of the Config.
func WithPool(pool Pool) Option {
	return func(c *Config) error {
		c.Pool = pool
		return nil
	}
}

// WithRegisterer is an option that sets the prometheus registerer of the Config.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *Config) error {
		c.Registerer = registerer
		return nil
	}
}
