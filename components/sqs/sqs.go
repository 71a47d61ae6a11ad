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

// Package sqs provides the `sqs:` component which receives messages from an AWS SQS queue.
//
// Waits of one second or more use SQS long polling. By default a message is deleted from the
// queue when its resource exchange completes, and becomes visible again after the visibility
// timeout when the exchange fails.
//
// Uri format:
//
//	sqs:orders?region=eu-west-1
//	sqs:orders?queueUrl=http://127.0.0.1:4566/000000000000/orders&endpoint=http://127.0.0.1:4566
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "sqs"

// Headers of the resource exchange, in addition to the string message attributes.
const (
	HeaderMessageId     = "SqsMessageId"
	HeaderReceiptHandle = "SqsReceiptHandle"
	HeaderQueueUrl      = "SqsQueueUrl"
)

// maxWaitTime SQS长轮询的最长等待时间
const maxWaitTime = 20 * time.Second

// API is the part of the SQS client used by the component.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// Options 端点参数
type Options struct {
	Region string
	// QueueUrl 队列地址，为空时通过队列名称查询
	QueueUrl string
	// Endpoint 自定义服务地址，例如localstack
	Endpoint  string
	AccessKey string
	SecretKey string
	// DeleteAfterRead 交换完成后删除消息
	DeleteAfterRead bool
	// VisibilityTimeout 消息不可见时间，单位秒，0使用队列配置
	VisibilityTimeout int32
	// PollInterval 等待时间小于1秒时的检查间隔
	PollInterval time.Duration
	// RequestTimeout 启动时查询队列地址的超时时间
	RequestTimeout time.Duration
}

// Component sqs组件
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
			DeleteAfterRead: true,
			PollInterval:    base.DefaultPollInterval,
			RequestTimeout:  10 * time.Second,
		},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.queueName = strings.TrimSpace(de.Path())
	if e.queueName == "" && e.options.QueueUrl == "" {
		return nil, fmt.Errorf("sqs queue name can not be empty. uri=%s", rawUri)
	}
	e.SetHooks(base.Hooks{Start: e.doStart})
	return e, nil
}

// Endpoint sqs队列端点
type Endpoint struct {
	*base.DefaultEndpoint
	options   Options
	queueName string
	queueUrl  string
	client    API
}

// SetClient sets the client used instead of one created from the endpoint options.
// It must be called before the endpoint starts.
func (e *Endpoint) SetClient(client API) {
	e.client = client
}

// QueueUrl returns the url of the queue, known once the endpoint started.
func (e *Endpoint) QueueUrl() string {
	return e.queueUrl
}

func (e *Endpoint) doStart() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.options.RequestTimeout)
	defer cancel()
	if e.client == nil {
		client, err := e.newClient(ctx)
		if err != nil {
			return err
		}
		e.client = client
	}
	e.queueUrl = e.options.QueueUrl
	if e.queueUrl == "" {
		out, err := e.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(e.queueName)})
		if err != nil {
			return fmt.Errorf("failed to get the url of sqs queue %s: %w", e.queueName, err)
		}
		e.queueUrl = aws.ToString(out.QueueUrl)
	}
	return nil
}

func (e *Endpoint) newClient(ctx context.Context) (API, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if e.options.Region != "" {
		opts = append(opts, awsconfig.WithRegion(e.options.Region))
	}
	if e.options.AccessKey != "" {
		accessKey, secretKey := e.options.AccessKey, e.options.SecretKey
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: accessKey, SecretAccessKey: secretKey, Source: "uri"}, nil
			})))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if e.options.Endpoint != "" {
			o.BaseEndpoint = aws.String(e.options.Endpoint)
		}
	}), nil
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), base.PollerFunc(e.poll), e.Logger(),
		e.Options().ShutdownTimeout), nil
}

func (e *Endpoint) poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	if e.client == nil {
		return nil, base.ErrClientNotInit
	}
	if timeout == 0 {
		return e.receive(ctx, 0)
	}
	if timeout > 0 && timeout < time.Second {
		return base.PollEvery(ctx, timeout, e.options.PollInterval, func(ctx context.Context) (*types.Exchange, error) {
			return e.receive(ctx, 0)
		})
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		wait := maxWaitTime
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining < time.Second {
				return nil, nil
			}
			if remaining < wait {
				wait = remaining
			}
		}
		ex, err := e.receive(ctx, int32(wait/time.Second))
		if ex != nil || err != nil {
			return ex, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func (e *Endpoint) receive(ctx context.Context, waitSeconds int32) (*types.Exchange, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(e.queueUrl),
		MaxNumberOfMessages:   1,
		WaitTimeSeconds:       waitSeconds,
		MessageAttributeNames: []string{"All"},
	}
	if e.options.VisibilityTimeout > 0 {
		input.VisibilityTimeout = e.options.VisibilityTimeout
	}
	out, err := e.client.ReceiveMessage(ctx, input)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, nil
		}
		return nil, err
	}
	if out == nil || len(out.Messages) == 0 {
		return nil, nil
	}
	msg := out.Messages[0]
	headers := map[string]interface{}{
		HeaderMessageId:     aws.ToString(msg.MessageId),
		HeaderReceiptHandle: aws.ToString(msg.ReceiptHandle),
		HeaderQueueUrl:      e.queueUrl,
	}
	for k, attr := range msg.MessageAttributes {
		if attr.StringValue != nil {
			headers[k] = *attr.StringValue
		}
	}
	ex := types.NewExchangeWithBody(types.InOnly, aws.ToString(msg.Body), headers)
	if e.options.DeleteAfterRead && msg.ReceiptHandle != nil {
		ex.AddOnCompletion(&deletion{endpoint: e, receiptHandle: *msg.ReceiptHandle})
	}
	return ex, nil
}

// deletion 交换完成时删除消息
type deletion struct {
	endpoint      *Endpoint
	receiptHandle string
}

func (d *deletion) OnComplete(_ *types.Exchange) {
	e := d.endpoint
	ctx, cancel := context.WithTimeout(context.Background(), e.options.RequestTimeout)
	defer cancel()
	_, err := e.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(e.queueUrl),
		ReceiptHandle: aws.String(d.receiptHandle),
	})
	if err != nil {
		e.Logger().Warnf("failed to delete sqs message. queue=%s, err=%v", e.queueUrl, err)
	}
}

func (d *deletion) OnFailure(_ *types.Exchange) {
}
