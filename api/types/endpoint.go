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

import "time"

// Scope 端点创建范围
type Scope int

const (
	// ScopePooled endpoints are cached by uri and their consumers are reused.
	ScopePooled Scope = iota
	// ScopePrototype endpoints are created for one use and shut down right after it.
	ScopePrototype
)

func (s Scope) String() string {
	if s == ScopePrototype {
		return "prototype"
	}
	return "pooled"
}

// Component 连接器组件，按scheme注册，负责创建端点
// Component is a connector registered under a scheme, for example `redis` or `file`.
// 实现方式参考`components`包，然后注册到默认注册器
// endpoint.Registry.Register(&MyComponent{})
type Component interface {
	// Scheme is the default name of the component.
	Scheme() string
	// CreateEndpoint creates an endpoint for the normalized uri.
	CreateEndpoint(config Config, uri string, scope Scope) (Endpoint, error)
}

// DynamicAwareComponent is implemented by components that can rewrite dynamic uris
// into cheaper static ones.
type DynamicAwareComponent interface {
	Component
	NewPollDynamicAware() PollDynamicAware
}

// Endpoint 可寻址的外部资源
// Endpoint is an addressable resource identified by a normalized uri.
type Endpoint interface {
	// URI returns the normalized uri.
	URI() string
	// Key returns the cache key of the endpoint.
	Key() string
	Scope() Scope
	// CreatePollingConsumer creates a consumer bound to this endpoint.
	// The caller starts and stops it.
	CreatePollingConsumer() (PollingConsumer, error)
	Start() error
	Stop() error
	Shutdown() error
}

// ConsumerCapabilities describes optional behaviour of a polling consumer.
// It is read once when the consumer is acquired.
type ConsumerCapabilities struct {
	// ExchangeAware consumers use the in-flight exchange passed to the receive methods,
	// other consumers are called with a nil exchange.
	ExchangeAware bool
	// BridgeErrorHandler consumers report resource failures as a failed resource exchange
	// instead of returning an error.
	BridgeErrorHandler bool
}

// PollingConsumer 轮询消费者，按需拉取一个资源交换
// PollingConsumer produces a resource exchange on demand.
// All receive methods return (nil, nil) when nothing is available.
type PollingConsumer interface {
	Endpoint() Endpoint
	Capabilities() ConsumerCapabilities
	// Receive blocks until an exchange is available.
	Receive(exchange *Exchange) (*Exchange, error)
	// ReceiveNoWait returns immediately.
	ReceiveNoWait(exchange *Exchange) (*Exchange, error)
	// ReceiveTimeout blocks up to timeout.
	ReceiveTimeout(exchange *Exchange, timeout time.Duration) (*Exchange, error)
	Start() error
	Stop() error
}

// EndpointRegistry resolves uris into endpoints.
type EndpointRegistry interface {
	// GetEndpoint returns the pooled endpoint for uri, creating and starting it when needed.
	GetEndpoint(uri string) (Endpoint, error)
	// GetPrototypeEndpoint creates a new started endpoint for uri that is not cached.
	GetPrototypeEndpoint(uri string) (Endpoint, error)
	// GetComponent returns the component registered for scheme.
	// autoStart starts the component when it has not been started yet.
	GetComponent(scheme string, autoStart bool) (Component, bool)
}
