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

import (
	"github.com/gofrs/uuid/v5"
)

// ExchangePattern 消息交换模式
type ExchangePattern int

const (
	// InOnly send-only: the result of a step replaces the in message.
	InOnly ExchangePattern = iota
	// InOut send-and-receive: the result of a step is written to the out message.
	InOut
)

// IsOutCapable reports whether the pattern expects an out message.
func (p ExchangePattern) IsOutCapable() bool {
	return p == InOut
}

func (p ExchangePattern) String() string {
	if p == InOut {
		return "InOut"
	}
	return "InOnly"
}

// Synchronization is a completion callback registered on an exchange.
// Ownership of pending synchronizations can be handed over to another exchange.
type Synchronization interface {
	OnComplete(exchange *Exchange)
	OnFailure(exchange *Exchange)
}

// Exchange 在处理管道中流转的一个工作单元
// Exchange is one unit of work moving through a pipeline.
// It is owned by a single goroutine at a time and is not safe for concurrent use.
type Exchange struct {
	id                  string
	pattern             ExchangePattern
	in                  *Message
	out                 *Message
	properties          map[string]interface{}
	variables           map[string]interface{}
	err                 error
	redeliveryExhausted bool
	completions         []Synchronization
}

// NewExchange 创建一个新的交换实例，并通过uuid生成ID
func NewExchange(pattern ExchangePattern) *Exchange {
	uuId, _ := uuid.NewV4()
	return &Exchange{
		id:      uuId.String(),
		pattern: pattern,
		in:      NewMessage(nil, nil),
	}
}

// NewExchangeWithBody creates an exchange whose in message carries body and headers.
func NewExchangeWithBody(pattern ExchangePattern, body interface{}, headers map[string]interface{}) *Exchange {
	ex := NewExchange(pattern)
	ex.in = NewMessage(body, headers)
	return ex
}

func (e *Exchange) Id() string {
	return e.id
}

func (e *Exchange) Pattern() ExchangePattern {
	return e.pattern
}

func (e *Exchange) SetPattern(pattern ExchangePattern) {
	e.pattern = pattern
}

// In returns the in message. It is never nil.
func (e *Exchange) In() *Message {
	if e.in == nil {
		e.in = NewMessage(nil, nil)
	}
	return e.in
}

func (e *Exchange) SetIn(m *Message) {
	e.in = m
}

// HasOut reports whether an out message has been created.
func (e *Exchange) HasOut() bool {
	return e.out != nil
}

// Out returns the out message, creating an empty one on first access.
func (e *Exchange) Out() *Message {
	if e.out == nil {
		e.out = NewMessage(nil, nil)
	}
	return e.out
}

// SetOut replaces the out message. nil discards it.
func (e *Exchange) SetOut(m *Message) {
	e.out = m
}

// Message returns the current message: out when present, otherwise in.
func (e *Exchange) Message() *Message {
	if e.out != nil {
		return e.out
	}
	return e.In()
}

func (e *Exchange) Err() error {
	return e.err
}

// SetErr records the failure cause. nil clears it.
func (e *Exchange) SetErr(err error) {
	e.err = err
}

// IsFailed reports whether a failure cause is set.
func (e *Exchange) IsFailed() bool {
	return e.err != nil
}

// IsRedeliveryExhausted reports whether the error handler gave up redelivering.
func (e *Exchange) IsRedeliveryExhausted() bool {
	return e.redeliveryExhausted
}

func (e *Exchange) SetRedeliveryExhausted(exhausted bool) {
	e.redeliveryExhausted = exhausted
}

func (e *Exchange) Property(key string) (interface{}, bool) {
	v, ok := e.properties[key]
	return v, ok
}

func (e *Exchange) GetProperty(key string) interface{} {
	return e.properties[key]
}

// PropertyBool returns the property as bool, false when missing or not a bool.
func (e *Exchange) PropertyBool(key string) bool {
	v, _ := e.properties[key].(bool)
	return v
}

func (e *Exchange) SetProperty(key string, value interface{}) {
	if e.properties == nil {
		e.properties = make(map[string]interface{})
	}
	e.properties[key] = value
}

func (e *Exchange) RemoveProperty(key string) {
	delete(e.properties, key)
}

// Properties returns the live property map, which may be nil.
func (e *Exchange) Properties() map[string]interface{} {
	return e.properties
}

// Variable 获取变量
func (e *Exchange) Variable(name string) (interface{}, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// SetVariable 设置变量
func (e *Exchange) SetVariable(name string, value interface{}) {
	if e.variables == nil {
		e.variables = make(map[string]interface{})
	}
	e.variables[name] = value
}

// Variables returns the live variable map, which may be nil.
func (e *Exchange) Variables() map[string]interface{} {
	return e.variables
}

// AddOnCompletion registers a synchronization invoked by RunCompletions.
func (e *Exchange) AddOnCompletion(s Synchronization) {
	if s != nil {
		e.completions = append(e.completions, s)
	}
}

// Completions returns the pending synchronizations.
func (e *Exchange) Completions() []Synchronization {
	return e.completions
}

// HandoverCompletions moves all pending synchronizations to target.
func (e *Exchange) HandoverCompletions(target *Exchange) {
	if target == nil || target == e || len(e.completions) == 0 {
		return
	}
	target.completions = append(target.completions, e.completions...)
	e.completions = nil
}

// RunCompletions invokes and clears the pending synchronizations according to the
// failure state of the exchange.
func (e *Exchange) RunCompletions() {
	list := e.completions
	e.completions = nil
	for _, s := range list {
		if e.IsFailed() {
			s.OnFailure(e)
		} else {
			s.OnComplete(e)
		}
	}
}

// Copy 复制交换，保留ID，消息、属性和变量使用新的容器
func (e *Exchange) Copy() *Exchange {
	c := &Exchange{
		id:                  e.id,
		pattern:             e.pattern,
		in:                  e.In().Copy(),
		err:                 e.err,
		redeliveryExhausted: e.redeliveryExhausted,
	}
	if e.out != nil {
		c.out = e.out.Copy()
	}
	if e.properties != nil {
		c.properties = make(map[string]interface{}, len(e.properties))
		for k, v := range e.properties {
			c.properties[k] = v
		}
	}
	if e.variables != nil {
		c.variables = make(map[string]interface{}, len(e.variables))
		for k, v := range e.variables {
			c.variables[k] = v
		}
	}
	return c
}
