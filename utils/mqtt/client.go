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

// Package mqtt wraps the Paho client for the `mqtt:` polling component.
// The client only subscribes: every registered Handler is re-subscribed after the broker
// connection is restored.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofrs/uuid/v5"
)

const (
	defaultMaxReconnectInterval = time.Minute
	defaultRetryInterval        = 2 * time.Second
	disconnectQuiesce           = 500
	// subackRefused broker拒绝订阅时返回的granted qos
	subackRefused = 0x80
)

var ErrNotConnected = errors.New("mqtt client is not connected")

// Handler 订阅主题及消息回调
type Handler struct {
	Topic  string
	Qos    byte
	Handle paho.MessageHandler
}

// Config 客户端配置
type Config struct {
	Server   string
	Username string
	Password string
	// ClientID 为空时生成随机id
	ClientID     string
	CleanSession bool
	// MaxReconnectInterval paho自动重连的最大间隔
	MaxReconnectInterval time.Duration
	// RetryInterval 首次连接失败后的重试间隔
	RetryInterval time.Duration
	CAFile        string
	CertFile      string
	CertKeyFile   string
}

func (c *Config) clientOptions() (*paho.ClientOptions, error) {
	if c.Server == "" {
		return nil, errors.New("mqtt server can not be empty")
	}
	opts := paho.NewClientOptions().
		AddBroker(c.Server).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetCleanSession(c.CleanSession).
		SetClientID(c.clientID())
	if c.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(c.MaxReconnectInterval)
	} else {
		opts.SetMaxReconnectInterval(defaultMaxReconnectInterval)
	}
	tlsConfig, err := newTLSConfig(c.CAFile, c.CertFile, c.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading mqtt certificates ca=%s cert=%s key=%s: %w", c.CAFile, c.CertFile, c.CertKeyFile, err)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

func (c *Config) clientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	id, _ := uuid.NewV4()
	return "pollenrich/" + strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Client 订阅型mqtt客户端
type Client struct {
	client    paho.Client
	connected atomic.Bool

	mu            sync.RWMutex
	subscriptions map[string]Handler
}

// NewClient connects to conf.Server, retrying every conf.RetryInterval until ctx is done.
func NewClient(ctx context.Context, conf Config) (*Client, error) {
	opts, err := conf.clientOptions()
	if err != nil {
		return nil, err
	}
	c := &Client{subscriptions: make(map[string]Handler)}
	opts.SetOnConnectHandler(c.onConnected)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	c.client = paho.NewClient(opts)

	retry := conf.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	for {
		token := c.client.Connect()
		if token.Wait() && token.Error() == nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, token.Error()
		case <-time.After(retry):
		}
	}
}

// RegisterHandler records handler and subscribes to its topic. A recorded handler
// is subscribed again after every reconnection, even if this first attempt failed.
func (c *Client) RegisterHandler(handler Handler) error {
	c.mu.Lock()
	c.subscriptions[handler.Topic] = handler
	c.mu.Unlock()
	return c.subscribe(handler)
}

// UnregisterHandler forgets topic and unsubscribes from it when connected.
func (c *Client) UnregisterHandler(topic string) error {
	c.mu.Lock()
	_, ok := c.subscriptions[topic]
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	if !ok || !c.IsConnected() {
		return nil
	}
	if token := c.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Topics returns the registered topic filters.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load()
}

// Close drops every subscription and disconnects from the broker.
func (c *Client) Close() error {
	topics := c.Topics()
	c.mu.Lock()
	c.subscriptions = make(map[string]Handler)
	c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	if len(topics) > 0 && c.IsConnected() {
		c.client.Unsubscribe(topics...).WaitTimeout(time.Second)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.connected.Store(false)
	return nil
}

func (c *Client) subscribe(handler Handler) error {
	if c.client == nil {
		return ErrNotConnected
	}
	token := c.client.Subscribe(handler.Topic, handler.Qos, handler.Handle)
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	if st, ok := token.(*paho.SubscribeToken); ok {
		if granted, ok := st.Result()[handler.Topic]; ok && granted == subackRefused {
			return fmt.Errorf("mqtt subscription to %s was refused", handler.Topic)
		}
	}
	return nil
}

func (c *Client) onConnected(pc paho.Client) {
	c.connected.Store(true)
	if pc == nil {
		return
	}
	// 重连后恢复订阅
	go func() {
		c.mu.RLock()
		handlers := make([]Handler, 0, len(c.subscriptions))
		for _, h := range c.subscriptions {
			handlers = append(handlers, h)
		}
		c.mu.RUnlock()
		for _, h := range handlers {
			_ = c.subscribe(h)
		}
	}()
}

func (c *Client) onConnectionLost(_ paho.Client, _ error) {
	c.connected.Store(false)
}

// newTLSConfig returns nil when no certificate file is configured.
func newTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	if caFile == "" && certFile == "" && keyFile == "" {
		return nil, nil
	}
	conf := &tls.Config{}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificate found in %s", caFile)
		}
		conf.RootCAs = pool
	}
	if certFile != "" && keyFile != "" {
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		conf.Certificates = []tls.Certificate{pair}
	}
	return conf, nil
}
