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

// Package types defines the contracts shared by the poll enricher, the consumer pool,
// the endpoint registry and the connector components.
//
// Package types 定义轮询富化处理器、消费者池、端点注册表以及各连接器组件之间共享的接口与数据结构。
package types

// Configuration 组件配置类型
// Configuration is the raw, map based configuration of a component or processor.
// It is decoded into a typed struct with `maps.Map2Struct`.
type Configuration map[string]interface{}

// AsyncCallback is the completion signal of an asynchronous processor.
// Done must be invoked exactly once per processed exchange.
//
// AsyncCallback 异步处理完成回调，每次处理必须且只能调用一次。
type AsyncCallback interface {
	// Done notifies the caller that processing finished.
	// doneSync is true when processing completed on the calling goroutine.
	Done(doneSync bool)
}

// AsyncCallbackFunc adapts a function to AsyncCallback.
type AsyncCallbackFunc func(doneSync bool)

// Done calls f(doneSync).
func (f AsyncCallbackFunc) Done(doneSync bool) {
	f(doneSync)
}

// AsyncProcessor processes an exchange and reports completion through the callback.
// The returned bool reports whether processing completed synchronously.
type AsyncProcessor interface {
	Process(exchange *Exchange, callback AsyncCallback) bool
}

// Expression computes a value from an exchange, for example the target of a dynamic poll.
// A nil result with a nil error means "no value".
//
// Expression 表达式，基于交换计算值，例如动态轮询的目标端点。
type Expression interface {
	Evaluate(exchange *Exchange) (interface{}, error)
}

// ExpressionFunc adapts a function to Expression.
type ExpressionFunc func(exchange *Exchange) (interface{}, error)

// Evaluate calls f(exchange).
func (f ExpressionFunc) Evaluate(exchange *Exchange) (interface{}, error) {
	return f(exchange)
}

// PropertiesResolver expands property placeholders such as `{{key}}` or `{{key:default}}`.
//
// PropertiesResolver 属性占位符解析器
type PropertiesResolver interface {
	// Resolve returns text with all placeholders replaced.
	// It fails when a placeholder has no value and no default.
	Resolve(text string) (string, error)
	// Get returns the raw property value.
	Get(key string) (string, bool)
}

// HeadersFactory creates header maps. It is used to take defensive copies of headers.
type HeadersFactory interface {
	NewMap(from map[string]interface{}) map[string]interface{}
}

// DefaultHeadersFactory copies headers into a plain map.
var DefaultHeadersFactory HeadersFactory = headersFactory{}

type headersFactory struct{}

func (headersFactory) NewMap(from map[string]interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(from))
	for k, v := range from {
		m[k] = v
	}
	return m
}

// Pool 协程池
type Pool interface {
	//Submit 往协程池提交一个任务
	//如果协程池满返回错误
	Submit(task func()) error
	//Release 释放
	Release()
}
