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

package types

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config defines the collaborators shared by processors, endpoints and components.
type Config struct {
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Properties expands `{{key}}` placeholders in endpoint uris.
	// If nil, uris are used as they are.
	Properties PropertiesResolver
	// HeadersFactory creates defensive header copies, defaulting to `DefaultHeadersFactory`.
	HeadersFactory HeadersFactory
	// EndpointRegistry resolves uris into endpoints.
	EndpointRegistry EndpointRegistry
	// DynamicAwareResolver is the scheme to optimizer lookup table.
	// If nil, dynamic uris are never optimised.
	DynamicAwareResolver DynamicAwareResolver
	// Pool is the interface for a coroutine pool used by asynchronous processing.
	// If not configured, the go func method is used by default.
	Pool Pool
	// Registerer receives the pool utilization collectors. If nil, nothing is registered.
	Registerer prometheus.Registerer
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		Logger:         DefaultLogger(),
		HeadersFactory: DefaultHeadersFactory,
	}

	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
