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

// Package nats provides the `nats:` component which receives messages of a subject.
//
// Every polling consumer holds a synchronous subscription, optionally in a queue group, on a
// connection shared by the endpoints of the same servers. Messages published while no poll is
// waiting are buffered by the subscription.
//
// Uri format:
//
//	nats:orders.created?servers=nats://127.0.0.1:4222&queueGroup=enricher
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "nats"

// Headers of the resource exchange, in addition to the message headers.
const (
	HeaderSubject = "NatsSubject"
	HeaderReply   = "NatsReply"
)

// DefaultNoWaitTimeout 不等待模式下获取一条已缓存消息的最长时间
const DefaultNoWaitTimeout = 10 * time.Millisecond

// Options 端点参数
type Options struct {
	// Servers nats服务器地址，多个使用逗号分隔
	Servers string
	// QueueGroup 队列组，同组的订阅者分摊消息
	QueueGroup string
	Username   string
	Password   string
	Token      string
	// ConnectTimeout 连接超时
	ConnectTimeout time.Duration
	// MaxReconnects 最大重连次数，-1表示不限
	MaxReconnects int
	// NoWaitTimeout 不等待模式下获取一条已缓存消息的最长时间
	NoWaitTimeout time.Duration
}

// Component nats组件，相同服务器的端点共享连接
type Component struct {
	once  sync.Once
	conns *base.SharedClients[*nats.Conn]
}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) connections() *base.SharedClients[*nats.Conn] {
	c.once.Do(func() {
		c.conns = base.NewSharedClients(func(conn *nats.Conn) error {
			return conn.Drain()
		})
	})
	return c.conns
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{
		DefaultEndpoint: de,
		component:       c,
		options: Options{
			Servers:        nats.DefaultURL,
			ConnectTimeout: 2 * time.Second,
			MaxReconnects:  -1,
			NoWaitTimeout:  DefaultNoWaitTimeout,
		},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.subject = strings.TrimSpace(de.Path())
	if e.subject == "" {
		return nil, fmt.Errorf("nats subject can not be empty. uri=%s", rawUri)
	}
	return e, nil
}

// Endpoint nats主题端点
type Endpoint struct {
	*base.DefaultEndpoint
	component *Component
	options   Options
	subject   string
}

// Subject returns the subscribed subject.
func (e *Endpoint) Subject() string {
	return e.subject
}

func (e *Endpoint) connectionKey() string {
	return e.options.Servers + "|" + e.options.Username
}

func (e *Endpoint) connect() (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("pollenrich"),
		nats.Timeout(e.options.ConnectTimeout),
		nats.MaxReconnects(e.options.MaxReconnects),
	}
	if e.options.Username != "" {
		opts = append(opts, nats.UserInfo(e.options.Username, e.options.Password))
	}
	if e.options.Token != "" {
		opts = append(opts, nats.Token(e.options.Token))
	}
	conn, err := nats.Connect(e.options.Servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	p := &poller{endpoint: e}
	return base.NewPollingConsumer(e, e.Capabilities(false), p, e.Logger(), e.Options().ShutdownTimeout), nil
}

type subscription interface {
	NextMsgWithContext(ctx context.Context) (*nats.Msg, error)
	Unsubscribe() error
}

type poller struct {
	endpoint *Endpoint
	sub      subscription
	acquired bool
}

func (p *poller) Start() error {
	e := p.endpoint
	conn, err := e.component.connections().Acquire(e.connectionKey(), e.connect)
	if err != nil {
		return err
	}
	p.acquired = true
	var sub *nats.Subscription
	if e.options.QueueGroup != "" {
		sub, err = conn.QueueSubscribeSync(e.subject, e.options.QueueGroup)
	} else {
		sub, err = conn.SubscribeSync(e.subject)
	}
	if err != nil {
		_ = p.Stop()
		return err
	}
	p.sub = sub
	return nil
}

func (p *poller) Stop() error {
	var errs []error
	if p.sub != nil {
		if err := p.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
		p.sub = nil
	}
	if p.acquired {
		p.acquired = false
		errs = append(errs, p.endpoint.component.connections().Release(p.endpoint.connectionKey()))
	}
	return errors.Join(errs...)
}

func (p *poller) Poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	sub := p.sub
	if sub == nil {
		return nil, base.ErrClientNotInit
	}
	if timeout == 0 {
		timeout = p.endpoint.options.NoWaitTimeout
	}
	pollCtx, cancel := base.PollContext(ctx, timeout)
	defer cancel()
	msg, err := sub.NextMsgWithContext(pollCtx)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || (pollCtx.Err() != nil && ctx.Err() == nil) {
			return nil, nil
		}
		return nil, err
	}
	return toExchange(msg), nil
}

func toExchange(msg *nats.Msg) *types.Exchange {
	headers := make(map[string]interface{}, len(msg.Header)+2)
	for k := range msg.Header {
		headers[k] = msg.Header.Get(k)
	}
	headers[HeaderSubject] = msg.Subject
	if msg.Reply != "" {
		headers[HeaderReply] = msg.Reply
	}
	return types.NewExchangeWithBody(types.InOnly, msg.Data, headers)
}
