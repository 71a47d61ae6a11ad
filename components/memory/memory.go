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

// Package memory provides the `memory:` component, named in-process queues that can be
// polled. Producers add exchanges with Component.Send.
//
// Uri format:
//
//	memory:orders?size=100
package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "memory"

// ErrQueueFull is returned by Send when the queue holds its maximum number of exchanges.
var ErrQueueFull = errors.New("memory queue is full")

// Options 端点参数
type Options struct {
	// Size 队列容量，只在队列第一次创建时生效
	Size int
}

// Component 内存队列组件，相同名称的端点共享同一个队列
type Component struct {
	mu     sync.Mutex
	queues map[string]*base.EventQueue
}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

// Queue returns the queue called name, creating it with size when it does not exist.
func (c *Component) Queue(name string, size int) *base.EventQueue {
	name = strings.TrimSpace(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queues == nil {
		c.queues = make(map[string]*base.EventQueue)
	}
	q, ok := c.queues[name]
	if !ok {
		q = base.NewEventQueue(size)
		c.queues[name] = q
	}
	return q
}

// Send adds exchange to the queue called name without blocking.
func (c *Component) Send(name string, exchange *types.Exchange) error {
	if exchange == nil {
		return errors.New("exchange can not be nil")
	}
	if !c.Queue(name, 0).Offer(exchange) {
		return fmt.Errorf("%w. name=%s", ErrQueueFull, name)
	}
	return nil
}

// SendBody adds an InOnly exchange carrying body and headers to the queue called name.
func (c *Component) SendBody(name string, body interface{}, headers map[string]interface{}) error {
	return c.Send(name, types.NewExchangeWithBody(types.InOnly, body, headers))
}

// Len returns the number of exchanges waiting in the queue called name.
func (c *Component) Len(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queues[strings.TrimSpace(name)]; ok {
		return q.Len()
	}
	return 0
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{DefaultEndpoint: de}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	if strings.TrimSpace(de.Path()) == "" {
		return nil, fmt.Errorf("memory queue name can not be empty. uri=%s", rawUri)
	}
	e.queue = c.Queue(de.Path(), e.options.Size)
	return e, nil
}

// Endpoint 内存队列端点
type Endpoint struct {
	*base.DefaultEndpoint
	options Options
	queue   *base.EventQueue
}

// Queue returns the queue polled by the consumers of the endpoint.
func (e *Endpoint) Queue() *base.EventQueue {
	return e.queue
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), e.queue, e.Logger(), e.Options().ShutdownTimeout), nil
}
