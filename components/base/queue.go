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
	"time"

	"github.com/rulego/pollenrich/api/types"
)

// DefaultQueueSize 默认事件队列大小
const DefaultQueueSize = 1000

// EventQueue buffers exchanges pushed by event driven resources, for example mqtt
// subscriptions or timers, so that they can be polled. It implements Poller.
//
// EventQueue 事件队列，把推送型资源转换为可轮询资源
type EventQueue struct {
	ch chan *types.Exchange
}

var _ Poller = (*EventQueue)(nil)

// NewEventQueue creates a queue holding at most size exchanges. size <= 0 uses DefaultQueueSize.
func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventQueue{ch: make(chan *types.Exchange, size)}
}

// Offer adds exchange without blocking. It returns false when the queue is full.
func (q *EventQueue) Offer(exchange *types.Exchange) bool {
	select {
	case q.ch <- exchange:
		return true
	default:
		return false
	}
}

// Put adds exchange, blocking while the queue is full.
func (q *EventQueue) Put(ctx context.Context, exchange *types.Exchange) error {
	select {
	case q.ch <- exchange:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of buffered exchanges.
func (q *EventQueue) Len() int {
	return len(q.ch)
}

func (q *EventQueue) Poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	if timeout == 0 {
		select {
		case ex := <-q.ch:
			return ex, nil
		default:
			return nil, nil
		}
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case ex := <-q.ch:
		return ex, nil
	case <-expired:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
