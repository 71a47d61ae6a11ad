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

package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/uri"
)

// MockScheme is the default scheme of the mock component.
const MockScheme = "mock"

// PollCall records one poll made on a mock resource.
type PollCall struct {
	// Timeout follows the base.Poller convention: -1 unbounded, 0 no wait, > 0 bounded.
	Timeout time.Duration
	// Exchange is the in-flight exchange passed by the caller, nil for exchange unaware consumers.
	Exchange *types.Exchange
}

type result struct {
	exchange *types.Exchange
	err      error
}

// Resource is the scripted content of one mock uri, shared by all its endpoints.
type Resource struct {
	ch    chan result
	mu    sync.Mutex
	calls []PollCall
	// OnPoll, when set, produces the result instead of the queue.
	OnPoll func(exchange *types.Exchange) (*types.Exchange, error)
}

// Add queues exchanges to be returned by the next polls.
func (r *Resource) Add(exchanges ...*types.Exchange) *Resource {
	for _, ex := range exchanges {
		r.ch <- result{exchange: ex}
	}
	return r
}

// AddBody queues a resource exchange carrying body and headers.
func (r *Resource) AddBody(body interface{}, headers map[string]interface{}) *Resource {
	return r.Add(types.NewExchangeWithBody(types.InOnly, body, headers))
}

// Fail queues a poll failure.
func (r *Resource) Fail(err error) *Resource {
	r.ch <- result{err: err}
	return r
}

// Calls returns the polls made so far.
func (r *Resource) Calls() []PollCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PollCall(nil), r.calls...)
}

// Pending returns the number of queued results.
func (r *Resource) Pending() int {
	return len(r.ch)
}

func (r *Resource) poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	r.mu.Lock()
	r.calls = append(r.calls, PollCall{Timeout: timeout, Exchange: exchange})
	onPoll := r.OnPoll
	r.mu.Unlock()
	if onPoll != nil {
		return onPoll(exchange)
	}
	var expired <-chan time.Time
	switch {
	case timeout == 0:
		select {
		case res := <-r.ch:
			return res.exchange, res.err
		default:
			return nil, nil
		}
	case timeout > 0:
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case res := <-r.ch:
		return res.exchange, res.err
	case <-expired:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MockOptions are the uri options of mock endpoints.
type MockOptions struct {
	// ExchangeAware consumers receive the in-flight exchange.
	ExchangeAware bool
	// FailConsumer makes CreatePollingConsumer fail.
	FailConsumer bool
}

// Component 可编程的测试组件，按uri（不含查询参数）共享资源
type Component struct {
	scheme string
	// DynamicAware creates the optimizer of the component, nil disables optimisation.
	DynamicAware func() types.PollDynamicAware

	mu        sync.Mutex
	resources map[string]*Resource
	endpoints []*Endpoint

	EndpointsCreated int32
	Started          int32
	Stopped          int32
}

var _ types.DynamicAwareComponent = (*Component)(nil)

// NewComponent creates a mock component for scheme, "" meaning MockScheme.
func NewComponent(scheme string) *Component {
	if scheme == "" {
		scheme = MockScheme
	}
	return &Component{scheme: scheme, resources: make(map[string]*Resource)}
}

func (c *Component) Scheme() string {
	return c.scheme
}

func (c *Component) Start() error {
	atomic.AddInt32(&c.Started, 1)
	return nil
}

func (c *Component) Stop() error {
	atomic.AddInt32(&c.Stopped, 1)
	return nil
}

func (c *Component) NewPollDynamicAware() types.PollDynamicAware {
	if c.DynamicAware == nil {
		return nil
	}
	return c.DynamicAware()
}

// Resource returns the resource of rawUri, creating it when needed.
// Query parameters are not part of the resource identity.
func (c *Component) Resource(rawUri string) *Resource {
	key := rawUri
	if u, err := uri.Parse(rawUri); err == nil {
		key = u.Path
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.resources[key]
	if !ok {
		r = &Resource{ch: make(chan result, 1024)}
		c.resources[key] = r
	}
	return r
}

// Endpoints returns the endpoints created so far.
func (c *Component) Endpoints() []*Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Endpoint(nil), c.endpoints...)
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{DefaultEndpoint: de, component: c, resource: c.Resource(rawUri)}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.SetHooks(base.Hooks{
		Start:    func() error { atomic.AddInt32(&e.Started, 1); return nil },
		Stop:     func() error { atomic.AddInt32(&e.Stopped, 1); return nil },
		Shutdown: func() error { atomic.AddInt32(&e.ShutdownCount, 1); return nil },
	})
	atomic.AddInt32(&c.EndpointsCreated, 1)
	c.mu.Lock()
	c.endpoints = append(c.endpoints, e)
	c.mu.Unlock()
	return e, nil
}

// Endpoint is a mock endpoint counting its lifecycle calls and consumers.
type Endpoint struct {
	*base.DefaultEndpoint
	component *Component
	resource  *Resource
	options   MockOptions

	Started          int32
	Stopped          int32
	ShutdownCount    int32
	ConsumersCreated int32
	ConsumersStopped int32
}

func (e *Endpoint) Resource() *Resource {
	return e.resource
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	if e.options.FailConsumer {
		return nil, errConsumer
	}
	atomic.AddInt32(&e.ConsumersCreated, 1)
	poller := &mockPoller{endpoint: e}
	return base.NewPollingConsumer(e, e.Capabilities(e.options.ExchangeAware), poller, e.Logger(),
		e.Options().ShutdownTimeout), nil
}

type mockPoller struct {
	endpoint *Endpoint
}

func (p *mockPoller) Poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	return p.endpoint.resource.poll(ctx, exchange, timeout)
}

func (p *mockPoller) Stop() error {
	atomic.AddInt32(&p.endpoint.ConsumersStopped, 1)
	return nil
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errConsumer = mockError("mock consumer creation failed")

// ErrConsumer is returned by endpoints created with failConsumer=true.
var ErrConsumer error = errConsumer
