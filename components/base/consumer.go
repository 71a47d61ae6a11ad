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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rulego/pollenrich/api/types"
)

// Poller is the connector specific part of a polling consumer.
// timeout < 0 waits until a resource is available or ctx is done,
// timeout == 0 returns immediately and timeout > 0 waits at most timeout.
// It returns (nil, nil) when nothing is available.
//
// A poller may also implement types.Starter, types.Stopper and types.Shutdowner.
type Poller interface {
	Poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error)
}

// PollerFunc adapts a function to Poller.
type PollerFunc func(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error)

func (f PollerFunc) Poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	return f(ctx, exchange, timeout)
}

// PollingConsumer 默认的轮询消费者实现，把三种接收方式统一转换为 Poller.Poll 调用
type PollingConsumer struct {
	ServiceSupport
	GracefulShutdown
	endpoint     types.Endpoint
	capabilities types.ConsumerCapabilities
	poller       Poller
}

var _ types.PollingConsumer = (*PollingConsumer)(nil)

// NewPollingConsumer creates a consumer for endpoint backed by poller.
func NewPollingConsumer(endpoint types.Endpoint, capabilities types.ConsumerCapabilities, poller Poller,
	logger types.Logger, shutdownTimeout time.Duration) *PollingConsumer {
	c := &PollingConsumer{
		endpoint:     endpoint,
		capabilities: capabilities,
		poller:       poller,
	}
	c.InitGracefulShutdown(logger, shutdownTimeout)
	c.SetHooks(Hooks{
		Start: func() error {
			return StartService(c.poller)
		},
		Stop: func() error {
			var err error
			c.GracefulStop(func() {
				err = StopService(c.poller)
			})
			return err
		},
		Shutdown: func() error {
			if sd, ok := c.poller.(types.Shutdowner); ok {
				return sd.Shutdown()
			}
			return nil
		},
	})
	return c
}

func (c *PollingConsumer) Endpoint() types.Endpoint {
	return c.endpoint
}

func (c *PollingConsumer) Capabilities() types.ConsumerCapabilities {
	return c.capabilities
}

// Poller returns the connector specific poller.
func (c *PollingConsumer) Poller() Poller {
	return c.poller
}

func (c *PollingConsumer) Receive(exchange *types.Exchange) (*types.Exchange, error) {
	return c.receive(exchange, -1)
}

func (c *PollingConsumer) ReceiveNoWait(exchange *types.Exchange) (*types.Exchange, error) {
	return c.receive(exchange, 0)
}

func (c *PollingConsumer) ReceiveTimeout(exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	if timeout < 0 {
		timeout = 0
	}
	return c.receive(exchange, timeout)
}

func (c *PollingConsumer) receive(exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	if !c.IsStarted() {
		return nil, fmt.Errorf("consumer for %s is not started: %w", c.endpoint.URI(), types.ErrServiceStopped)
	}
	if err := c.BeginOperation(); err != nil {
		return nil, nil
	}
	defer c.EndOperation()

	ctx := c.GetShutdownContext()
	result, err := c.poller.Poll(ctx, exchange, timeout)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// 停机中断的等待视为没有资源
			return nil, nil
		}
		return c.HandleError(err)
	}
	return result, nil
}

// HandleError reports a resource failure according to the bridge error handler capability.
func (c *PollingConsumer) HandleError(err error) (*types.Exchange, error) {
	if c.capabilities.BridgeErrorHandler {
		failed := types.NewExchange(types.InOnly)
		failed.SetErr(err)
		return failed, nil
	}
	return nil, err
}

// Wait blocks for timeout following the Poller timeout convention, returning false when
// ctx is done first. It is used by pollers that check their resource periodically.
func Wait(ctx context.Context, timeout time.Duration) bool {
	if timeout == 0 {
		return ctx.Err() == nil
	}
	if timeout < 0 {
		<-ctx.Done()
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// PollContext derives the context of one poll: a deadline for timeout > 0, ctx itself otherwise.
func PollContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// DefaultPollInterval 周期检查型资源的默认检查间隔
const DefaultPollInterval = 100 * time.Millisecond

// PollEvery calls once until it produces an exchange or fails, waiting interval between
// attempts. timeout follows the Poller convention. once receives the context of the poll,
// and a failure caused by that context ending is reported as nothing available.
func PollEvery(ctx context.Context, timeout, interval time.Duration,
	once func(ctx context.Context) (*types.Exchange, error)) (*types.Exchange, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pollCtx, cancel := PollContext(ctx, timeout)
	defer cancel()
	for {
		ex, err := once(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil && errors.Is(err, pollCtx.Err()) {
				return nil, nil
			}
			return nil, err
		}
		if ex != nil || timeout == 0 {
			return ex, nil
		}
		if timeout > 0 {
			if deadline, ok := pollCtx.Deadline(); ok && time.Until(deadline) < interval {
				interval = time.Until(deadline)
			}
		}
		if interval <= 0 || !Wait(pollCtx, interval) {
			return nil, nil
		}
	}
}
