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

// Package mqtt provides the `mqtt:` component. The endpoint subscribes to a topic filter when
// it starts and buffers the received messages, which its polling consumers then take one by
// one. Messages arriving while the buffer is full are dropped.
//
// Uri format:
//
//	mqtt:sensors/+/temperature?server=tcp://127.0.0.1:1883&qos=1&queueSize=100
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/mqtt"
)

// Scheme 组件默认名称
const Scheme = "mqtt"

// DefaultServer 默认的broker地址
const DefaultServer = "tcp://127.0.0.1:1883"

// Headers of the resource exchange.
const (
	HeaderTopic     = "MqttTopic"
	HeaderQos       = "MqttQos"
	HeaderMessageId = "MqttMessageId"
	HeaderRetained  = "MqttRetained"
	HeaderDuplicate = "MqttDuplicate"
)

// Options 端点参数
type Options struct {
	// Server broker地址
	Server   string
	Username string
	Password string
	// Qos 订阅Qos
	Qos      uint8
	ClientId string
	// CleanSession 是否清除会话
	CleanSession bool
	CAFile       string
	CertFile     string
	CertKeyFile  string
	// QueueSize 缓存的消息数量
	QueueSize int
	// ConnectTimeout 连接broker的最长重试时间
	ConnectTimeout time.Duration
}

// Component mqtt组件
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
	e := &Endpoint{
		DefaultEndpoint: de,
		options: Options{
			Server:         DefaultServer,
			CleanSession:   true,
			QueueSize:      base.DefaultQueueSize,
			ConnectTimeout: 10 * time.Second,
		},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.topic = strings.TrimSpace(de.Path())
	if e.topic == "" {
		return nil, fmt.Errorf("mqtt topic can not be empty. uri=%s", rawUri)
	}
	if e.options.Qos > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", e.options.Qos)
	}
	e.queue = base.NewEventQueue(e.options.QueueSize)
	e.SetHooks(base.Hooks{Start: e.doStart, Stop: e.doStop})
	return e, nil
}

// Endpoint mqtt订阅端点
type Endpoint struct {
	*base.DefaultEndpoint
	options Options
	topic   string
	queue   *base.EventQueue
	client  *mqtt.Client
}

// Topic returns the subscribed topic filter.
func (e *Endpoint) Topic() string {
	return e.topic
}

func (e *Endpoint) doStart() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.options.ConnectTimeout)
	defer cancel()
	client, err := mqtt.NewClient(ctx, mqtt.Config{
		Server:       e.options.Server,
		Username:     e.options.Username,
		Password:     e.options.Password,
		CleanSession: e.options.CleanSession,
		ClientID:     e.options.ClientId,
		CAFile:       e.options.CAFile,
		CertFile:     e.options.CertFile,
		CertKeyFile:  e.options.CertKeyFile,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", e.options.Server, err)
	}
	if err := client.RegisterHandler(mqtt.Handler{Topic: e.topic, Qos: e.options.Qos, Handle: e.handle}); err != nil {
		_ = client.Close()
		return err
	}
	e.client = client
	return nil
}

func (e *Endpoint) doStop() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Endpoint) handle(_ paho.Client, msg paho.Message) {
	if !e.queue.Offer(toExchange(msg)) {
		e.Logger().Warnf("mqtt queue is full, message dropped. topic=%s", msg.Topic())
	}
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), e.queue, e.Logger(), e.Options().ShutdownTimeout), nil
}

func toExchange(msg paho.Message) *types.Exchange {
	return types.NewExchangeWithBody(types.InOnly, msg.Payload(), map[string]interface{}{
		HeaderTopic:     msg.Topic(),
		HeaderQos:       msg.Qos(),
		HeaderMessageId: msg.MessageID(),
		HeaderRetained:  msg.Retained(),
		HeaderDuplicate: msg.Duplicate(),
	})
}
