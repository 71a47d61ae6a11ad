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

// Package kafka provides the `kafka:` component which reads records of a topic.
//
// Every polling consumer owns a kafka-go reader. With a consumer group the offset of a record
// is committed when the resource exchange completes, so a failed exchange is read again by the
// next member of the group after a rebalance.
//
// Uri format:
//
//	kafka:orders?brokers=127.0.0.1:9092&groupId=enricher
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/segmentio/kafka-go"
)

// Scheme 组件默认名称
const Scheme = "kafka"

// Headers of the resource exchange.
const (
	HeaderKey       = "KafkaKey"
	HeaderTopic     = "KafkaTopic"
	HeaderPartition = "KafkaPartition"
	HeaderOffset    = "KafkaOffset"
	HeaderTimestamp = "KafkaTimestamp"
)

// DefaultNoWaitTimeout 不等待模式下读取一条记录的最长时间
const DefaultNoWaitTimeout = 10 * time.Millisecond

// Options 端点参数
type Options struct {
	// Brokers kafka服务器地址，多个使用逗号分隔
	Brokers []string
	// GroupId 消费者组，为空时从 Partition 读取
	GroupId   string
	Partition int
	MinBytes  int
	MaxBytes  int
	// MaxWait 拉取数据时服务端的最长等待时间
	MaxWait time.Duration
	// StartOffset first 或者 last
	StartOffset string
	// NoWaitTimeout 不等待模式下读取一条记录的最长时间
	NoWaitTimeout time.Duration
}

// Component kafka组件
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
			MinBytes:      1,
			MaxBytes:      10e6,
			MaxWait:       500 * time.Millisecond,
			StartOffset:   "last",
			NoWaitTimeout: DefaultNoWaitTimeout,
		},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.topic = strings.TrimSpace(de.Path())
	if e.topic == "" {
		return nil, fmt.Errorf("kafka topic can not be empty. uri=%s", rawUri)
	}
	if len(e.options.Brokers) == 0 {
		return nil, errors.New("kafka brokers can not be empty")
	}
	if e.options.MinBytes <= 0 || e.options.MaxBytes < e.options.MinBytes {
		return nil, fmt.Errorf("invalid kafka fetch size minBytes=%d maxBytes=%d", e.options.MinBytes, e.options.MaxBytes)
	}
	switch strings.ToLower(e.options.StartOffset) {
	case "first", "last":
	default:
		return nil, fmt.Errorf("unsupported kafka start offset %s", e.options.StartOffset)
	}
	return e, nil
}

// Endpoint kafka主题端点
type Endpoint struct {
	*base.DefaultEndpoint
	options Options
	topic   string
}

// ReaderConfig returns the configuration of the readers created by the consumers.
func (e *Endpoint) ReaderConfig() kafka.ReaderConfig {
	startOffset := kafka.LastOffset
	if strings.ToLower(e.options.StartOffset) == "first" {
		startOffset = kafka.FirstOffset
	}
	config := kafka.ReaderConfig{
		Brokers:     e.options.Brokers,
		GroupID:     e.options.GroupId,
		Topic:       e.topic,
		MinBytes:    e.options.MinBytes,
		MaxBytes:    e.options.MaxBytes,
		MaxWait:     e.options.MaxWait,
		StartOffset: startOffset,
	}
	if e.options.GroupId == "" {
		config.Partition = e.options.Partition
	}
	return config
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	p := &poller{endpoint: e}
	return base.NewPollingConsumer(e, e.Capabilities(false), p, e.Logger(), e.Options().ShutdownTimeout), nil
}

// poller 每个消费者拥有一个reader
type poller struct {
	endpoint *Endpoint
	reader   *kafka.Reader
}

func (p *poller) Start() error {
	p.reader = kafka.NewReader(p.endpoint.ReaderConfig())
	return nil
}

func (p *poller) Stop() error {
	if p.reader == nil {
		return nil
	}
	return p.reader.Close()
}

func (p *poller) Poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	if p.reader == nil {
		return nil, base.ErrClientNotInit
	}
	if timeout == 0 {
		timeout = p.endpoint.options.NoWaitTimeout
	}
	pollCtx, cancel := base.PollContext(ctx, timeout)
	defer cancel()
	msg, err := p.reader.FetchMessage(pollCtx)
	if err != nil {
		if pollCtx.Err() != nil && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}
	ex := toExchange(msg)
	if p.endpoint.options.GroupId != "" {
		ex.AddOnCompletion(&commit{reader: p.reader, msg: msg, logger: p.endpoint.Logger()})
	}
	return ex, nil
}

func toExchange(msg kafka.Message) *types.Exchange {
	headers := map[string]interface{}{
		HeaderKey:       string(msg.Key),
		HeaderTopic:     msg.Topic,
		HeaderPartition: msg.Partition,
		HeaderOffset:    msg.Offset,
		HeaderTimestamp: msg.Time,
	}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return types.NewExchangeWithBody(types.InOnly, msg.Value, headers)
}

// commit 交换完成时提交偏移量
type commit struct {
	reader *kafka.Reader
	msg    kafka.Message
	logger types.Logger
}

func (c *commit) OnComplete(_ *types.Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.reader.CommitMessages(ctx, c.msg); err != nil {
		c.logger.Warnf("kafka commit failed. topic=%s, partition=%d, offset=%d, err=%v",
			c.msg.Topic, c.msg.Partition, c.msg.Offset, err)
	}
}

func (c *commit) OnFailure(_ *types.Exchange) {
}
