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

package mqtt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient() *Client {
	return &Client{subscriptions: make(map[string]Handler)}
}

func TestClientConnectionStatus(t *testing.T) {
	client := newTestClient()
	assert.False(t, client.IsConnected())

	client.onConnected(nil)
	assert.True(t, client.connected.Load())
	// 没有paho客户端时仍然视为未连接
	assert.False(t, client.IsConnected())

	client.onConnectionLost(nil, nil)
	assert.False(t, client.connected.Load())
}

func TestClientWithoutBroker(t *testing.T) {
	client := newTestClient()
	assert.Equal(t, ErrNotConnected, client.RegisterHandler(Handler{Topic: "a"}))
	assert.Equal(t, ErrNotConnected, client.RegisterHandler(Handler{Topic: "b"}))
	// 订阅失败也会保留，重连后再订阅
	topics := client.Topics()
	sort.Strings(topics)
	assert.Equal(t, []string{"a", "b"}, topics)

	assert.Nil(t, client.UnregisterHandler("a"))
	assert.Nil(t, client.UnregisterHandler("a"))
	assert.Equal(t, []string{"b"}, client.Topics())

	assert.Nil(t, client.Close())
	assert.Empty(t, client.Topics())
}

func TestConfigClientID(t *testing.T) {
	conf := Config{ClientID: "fixed"}
	assert.Equal(t, "fixed", conf.clientID())

	conf = Config{}
	id1, id2 := conf.clientID(), conf.clientID()
	assert.Len(t, id1, len("pollenrich/")+12)
	assert.NotEqual(t, id1, id2)
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.NotNil(t, err)

	_, err = NewClient(context.Background(), Config{Server: "tcp://127.0.0.1:1883", CAFile: "non-existent-ca.pem"})
	assert.NotNil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = NewClient(ctx, Config{Server: "tcp://127.0.0.1:1", RetryInterval: 20 * time.Millisecond})
	assert.NotNil(t, err)
}

func TestNewTLSConfig(t *testing.T) {
	tlsConfig, err := newTLSConfig("", "", "")
	assert.Nil(t, err)
	assert.Nil(t, tlsConfig)

	tlsConfig, err = newTLSConfig("non-existent-ca.pem", "", "")
	assert.NotNil(t, err)
	assert.Nil(t, tlsConfig)

	invalid := filepath.Join(t.TempDir(), "ca.pem")
	assert.Nil(t, os.WriteFile(invalid, []byte("not a certificate"), 0644))
	_, err = newTLSConfig(invalid, "", "")
	assert.NotNil(t, err)
}

func TestClientConcurrentRegister(t *testing.T) {
	client := newTestClient()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = client.RegisterHandler(Handler{Topic: fmt.Sprintf("test/topic/%d", id)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, client.Topics(), 10)
}
