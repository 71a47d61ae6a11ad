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

package base

import (
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/utils/maps"
	"github.com/rulego/pollenrich/utils/uri"
)

// EndpointOptions 所有端点通用的uri参数
type EndpointOptions struct {
	// BridgeErrorHandler 为true时，资源错误以失败的资源交换返回，而不是错误
	BridgeErrorHandler bool
	// ShutdownTimeout 停止消费者时等待进行中的轮询的时间，例如 "500ms"
	ShutdownTimeout time.Duration
}

// DefaultEndpoint implements the identity and lifecycle parts of types.Endpoint.
// Connector endpoints embed it and add CreatePollingConsumer.
type DefaultEndpoint struct {
	ServiceSupport
	config  types.Config
	uri     string
	scope   types.Scope
	parsed  *uri.URI
	options EndpointOptions
}

// NewDefaultEndpoint parses rawUri and decodes the common endpoint options.
func NewDefaultEndpoint(config types.Config, rawUri string, scope types.Scope) (*DefaultEndpoint, error) {
	parsed, err := uri.Parse(rawUri)
	if err != nil {
		return nil, err
	}
	e := &DefaultEndpoint{
		config: config,
		uri:    parsed.String(),
		scope:  scope,
		parsed: parsed,
	}
	if err := maps.Map2Struct(maps.StringMap(parsed.Params), &e.options); err != nil {
		return nil, err
	}
	if e.config.Logger == nil {
		e.config.Logger = types.DefaultLogger()
	}
	return e, nil
}

func (e *DefaultEndpoint) URI() string {
	return e.uri
}

// Key is the normalized uri.
func (e *DefaultEndpoint) Key() string {
	return e.uri
}

func (e *DefaultEndpoint) Scope() types.Scope {
	return e.scope
}

func (e *DefaultEndpoint) Config() types.Config {
	return e.config
}

func (e *DefaultEndpoint) Logger() types.Logger {
	return e.config.Logger
}

// Path returns the part of the uri between the scheme and the query.
func (e *DefaultEndpoint) Path() string {
	return e.parsed.Path
}

// Params returns the query parameters of the uri.
func (e *DefaultEndpoint) Params() map[string]string {
	return e.parsed.Params
}

func (e *DefaultEndpoint) Options() EndpointOptions {
	return e.options
}

// DecodeOptions decodes the query parameters into out.
func (e *DefaultEndpoint) DecodeOptions(out interface{}) error {
	return maps.Map2Struct(maps.StringMap(e.parsed.Params), out)
}

// Capabilities returns the capabilities of consumers created by this endpoint.
func (e *DefaultEndpoint) Capabilities(exchangeAware bool) types.ConsumerCapabilities {
	return types.ConsumerCapabilities{
		ExchangeAware:      exchangeAware,
		BridgeErrorHandler: e.options.BridgeErrorHandler,
	}
}
