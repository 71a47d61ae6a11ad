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

// Package timer provides the `timer:` component which produces an exchange on every tick of
// a cron expression, with seconds, or of a fixed period. Ticks are buffered for the polling
// consumers of the endpoint. A tick is skipped when the buffer is full.
//
// Uri format:
//
//	timer:report?cron=0 */5 * * * *
//	timer:heartbeat?period=500ms&repeatCount=10
package timer

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "timer"

// Headers of the resource exchange.
const (
	HeaderTimerName = "TimerName"
	HeaderFiredTime = "TimerFiredTime"
	HeaderCounter   = "TimerCounter"
)

// Options 端点参数
type Options struct {
	// Cron 带秒的cron表达式，例如 */10 * * * * *
	Cron string
	// Period 固定触发间隔，Cron为空时使用
	Period time.Duration
	// RepeatCount 最大触发次数，0表示不限
	RepeatCount int64
	// QueueSize 缓存的触发数量
	QueueSize int
}

// Component 定时器组件
type Component struct{}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{DefaultEndpoint: de, options: Options{QueueSize: 1}}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.name = strings.TrimSpace(de.Path())
	if e.name == "" {
		return nil, fmt.Errorf("timer name can not be empty. uri=%s", rawUri)
	}
	switch {
	case e.options.Cron != "":
		e.schedule, err = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).
			Parse(e.options.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %s: %w", e.options.Cron, err)
		}
	case e.options.Period > 0:
		e.schedule = periodSchedule(e.options.Period)
	default:
		return nil, errors.New("timer requires a cron expression or a positive period")
	}
	e.queue = base.NewEventQueue(e.options.QueueSize)
	e.SetHooks(base.Hooks{Start: e.doStart, Stop: e.doStop})
	return e, nil
}

// periodSchedule 固定间隔触发，支持小于1秒的间隔
type periodSchedule time.Duration

func (p periodSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(p))
}

// Endpoint 定时器端点
type Endpoint struct {
	*base.DefaultEndpoint
	options  Options
	name     string
	schedule cron.Schedule
	queue    *base.EventQueue
	cron     *cron.Cron
	entryId  cron.EntryID
	counter  int64
}

// Counter returns the number of ticks so far, skipped ones included.
func (e *Endpoint) Counter() int64 {
	return atomic.LoadInt64(&e.counter)
}

func (e *Endpoint) doStart() error {
	e.cron = cron.New()
	e.entryId = e.cron.Schedule(e.schedule, cron.FuncJob(e.fire))
	e.cron.Start()
	return nil
}

func (e *Endpoint) doStop() error {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	return nil
}

func (e *Endpoint) fire() {
	n := atomic.AddInt64(&e.counter, 1)
	if e.options.RepeatCount > 0 && n >= e.options.RepeatCount {
		e.cron.Remove(e.entryId)
		if n > e.options.RepeatCount {
			return
		}
	}
	ex := types.NewExchange(types.InOnly)
	ex.In().SetHeader(HeaderTimerName, e.name)
	ex.In().SetHeader(HeaderFiredTime, time.Now())
	ex.In().SetHeader(HeaderCounter, n)
	if !e.queue.Offer(ex) {
		e.Logger().Debugf("timer tick skipped, nobody polled the previous one. timer=%s, counter=%d", e.name, n)
	}
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), e.queue, e.Logger(), e.Options().ShutdownTimeout), nil
}
