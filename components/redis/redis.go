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

// Package redis provides the `redis:` component which pops values from a redis list.
//
// No wait polls use LPOP, waiting polls use BLPOP. Endpoints of the same server and database
// share one client.
//
// Uri format:
//
//	redis:127.0.0.1:6379/orders?db=1&password=secret
//	redis://127.0.0.1:6379/orders?command=rpop
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "redis"

// HeaderKey is the list key the value was popped from.
const HeaderKey = "RedisKey"

const (
	CommandLPop = "lpop"
	CommandRPop = "rpop"
)

// blockInterval 不限时等待时，单次BLPOP的阻塞时长
const blockInterval = time.Second

// Options 端点参数
type Options struct {
	// DB 数据库编号
	DB       int
	Username string
	Password string
	// Command lpop 或者 rpop，默认 lpop
	Command string
	// PoolSize 连接池大小，只在客户端第一次创建时生效
	PoolSize int
	// DialTimeout 连接超时
	DialTimeout time.Duration
	// PollInterval 等待时间小于1秒时的检查间隔
	PollInterval time.Duration
}

// Component redis组件，相同服务器和数据库的端点共享客户端
type Component struct {
	once    sync.Once
	clients *base.SharedClients[*redis.Client]
}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) sharedClients() *base.SharedClients[*redis.Client] {
	c.once.Do(func() {
		c.clients = base.NewSharedClients(func(client *redis.Client) error {
			return client.Close()
		})
	})
	return c.clients
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{
		DefaultEndpoint: de,
		component:       c,
		options:         Options{Command: CommandLPop, DialTimeout: 5 * time.Second, PollInterval: base.DefaultPollInterval},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	addr, key, _ := strings.Cut(de.Path(), "/")
	if addr == "" || key == "" {
		return nil, fmt.Errorf("redis uri must be redis:host:port/key. uri=%s", rawUri)
	}
	e.addr, e.key = addr, key
	e.options.Command = strings.ToLower(e.options.Command)
	if e.options.Command != CommandLPop && e.options.Command != CommandRPop {
		return nil, fmt.Errorf("unsupported redis command %s", e.options.Command)
	}
	e.SetHooks(base.Hooks{Start: e.doStart, Stop: e.doStop})
	return e, nil
}

// Endpoint redis列表端点
type Endpoint struct {
	*base.DefaultEndpoint
	component *Component
	options   Options
	addr      string
	key       string
	clientKey string
	// client 停止时置空，轮询中并发读取
	client atomic.Pointer[redis.Client]
}

// ListKey returns the polled list.
func (e *Endpoint) ListKey() string {
	return e.key
}

// Client returns the shared client, nil before the endpoint is started.
func (e *Endpoint) Client() *redis.Client {
	return e.client.Load()
}

func (e *Endpoint) doStart() error {
	e.clientKey = fmt.Sprintf("%s/%d/%s", e.addr, e.options.DB, e.options.Username)
	client, err := e.component.sharedClients().Acquire(e.clientKey, func() (*redis.Client, error) {
		rdb := redis.NewClient(&redis.Options{
			Addr:        e.addr,
			Username:    e.options.Username,
			Password:    e.options.Password,
			DB:          e.options.DB,
			PoolSize:    e.options.PoolSize,
			DialTimeout: e.options.DialTimeout,
		})
		ctx, cancel := context.WithTimeout(context.Background(), e.options.DialTimeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to ping redis %s: %w", e.addr, err)
		}
		return rdb, nil
	})
	if err != nil {
		return err
	}
	e.client.Store(client)
	return nil
}

func (e *Endpoint) doStop() error {
	if e.client.Swap(nil) == nil {
		return nil
	}
	return e.component.sharedClients().Release(e.clientKey)
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), base.PollerFunc(e.poll), e.Logger(),
		e.Options().ShutdownTimeout), nil
}

func (e *Endpoint) poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	client := e.client.Load()
	if client == nil {
		return nil, base.ErrClientNotInit
	}
	switch {
	case timeout == 0:
		return e.pop(ctx)
	case timeout > 0 && timeout < time.Second:
		// BLPOP的最小阻塞时间为1秒
		return base.PollEvery(ctx, timeout, e.options.PollInterval, e.pop)
	case timeout > 0:
		return e.blockingPop(ctx, client, timeout)
	}
	for {
		ex, err := e.blockingPop(ctx, client, blockInterval)
		if ex != nil || err != nil || ctx.Err() != nil {
			return ex, err
		}
	}
}

func (e *Endpoint) pop(ctx context.Context) (*types.Exchange, error) {
	client := e.client.Load()
	if client == nil {
		return nil, base.ErrClientNotInit
	}
	var cmd *redis.StringCmd
	if e.options.Command == CommandRPop {
		cmd = client.RPop(ctx, e.key)
	} else {
		cmd = client.LPop(ctx, e.key)
	}
	value, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.toExchange(e.key, value), nil
}

func (e *Endpoint) blockingPop(ctx context.Context, client *redis.Client, timeout time.Duration) (*types.Exchange, error) {
	var cmd *redis.StringSliceCmd
	if e.options.Command == CommandRPop {
		cmd = client.BRPop(ctx, timeout, e.key)
	} else {
		cmd = client.BLPop(ctx, timeout, e.key)
	}
	values, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis reply %v", values)
	}
	return e.toExchange(values[0], values[1]), nil
}

func (e *Endpoint) toExchange(key, value string) *types.Exchange {
	return types.NewExchangeWithBody(types.InOnly, value, map[string]interface{}{HeaderKey: key})
}
