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
	"testing"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = types.NewConfig(types.WithLogger(types.NopLogger()))

type testMessage struct {
	topic   string
	payload []byte
}

func (m *testMessage) Duplicate() bool   { return false }
func (m *testMessage) Qos() byte         { return 1 }
func (m *testMessage) Retained() bool    { return true }
func (m *testMessage) Topic() string     { return m.topic }
func (m *testMessage) MessageID() uint16 { return 9 }
func (m *testMessage) Payload() []byte   { return m.payload }
func (m *testMessage) Ack()              {}

func TestMqttBufferedMessages(t *testing.T) {
	c := &Component{}
	assert.Equal(t, Scheme, c.Scheme())
	ep, err := c.CreateEndpoint(testConfig, "mqtt:sensors/+/temp?queueSize=1&qos=1", types.ScopePooled)
	require.Nil(t, err)
	e := ep.(*Endpoint)
	assert.Equal(t, "sensors/+/temp", e.Topic())

	consumer, err := ep.CreatePollingConsumer()
	require.Nil(t, err)
	require.Nil(t, consumer.Start())
	defer consumer.Stop()

	e.handle(nil, &testMessage{topic: "sensors/a/temp", payload: []byte("21.5")})
	//队列已满时丢弃
	e.handle(nil, &testMessage{topic: "sensors/b/temp", payload: []byte("19")})

	ex, err := consumer.ReceiveTimeout(nil, 100*time.Millisecond)
	require.Nil(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, []byte("21.5"), ex.In().Body)
	assert.Equal(t, "sensors/a/temp", ex.In().GetHeader(HeaderTopic))
	assert.Equal(t, byte(1), ex.In().GetHeader(HeaderQos))
	assert.Equal(t, uint16(9), ex.In().GetHeader(HeaderMessageId))
	assert.Equal(t, true, ex.In().GetHeader(HeaderRetained))

	ex, err = consumer.ReceiveNoWait(nil)
	assert.Nil(t, err)
	assert.Nil(t, ex)
}

func TestMqttEndpointErrors(t *testing.T) {
	c := &Component{}
	_, err := c.CreateEndpoint(testConfig, "mqtt:", types.ScopePooled)
	assert.NotNil(t, err)
	_, err = c.CreateEndpoint(testConfig, "mqtt:a?qos=3", types.ScopePooled)
	assert.NotNil(t, err)

	ep, err := c.CreateEndpoint(testConfig, "mqtt:a?server=tcp://127.0.0.1:1&connectTimeout=50ms", types.ScopePooled)
	require.Nil(t, err)
	assert.NotNil(t, ep.Start())
}
