/*
 * Copyright 2023 The RuleGo Authors.
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

package types

// Message 交换中的消息，包含消息体和消息头
// Message is the payload of an exchange: a body and string keyed headers.
type Message struct {
	//Body 消息体
	Body interface{}
	//Headers 消息头
	Headers map[string]interface{}
}

// NewMessage 创建一个新的消息实例
func NewMessage(body interface{}, headers map[string]interface{}) *Message {
	if headers == nil {
		headers = make(map[string]interface{})
	}
	return &Message{Body: body, Headers: headers}
}

// Header 通过key获取消息头
func (m *Message) Header(key string) (interface{}, bool) {
	if m.Headers == nil {
		return nil, false
	}
	v, ok := m.Headers[key]
	return v, ok
}

// GetHeader returns the header value or nil.
func (m *Message) GetHeader(key string) interface{} {
	v, _ := m.Header(key)
	return v
}

// SetHeader 设置消息头
func (m *Message) SetHeader(key string, value interface{}) {
	if key == "" {
		return
	}
	if m.Headers == nil {
		m.Headers = make(map[string]interface{})
	}
	m.Headers[key] = value
}

// RemoveHeader 删除消息头
func (m *Message) RemoveHeader(key string) {
	delete(m.Headers, key)
}

// SetHeaders replaces all headers. A nil map clears them.
func (m *Message) SetHeaders(headers map[string]interface{}) {
	if headers == nil {
		headers = make(map[string]interface{})
	}
	m.Headers = headers
}

// CopyFrom 复制另一条消息的消息体和消息头，消息头使用新的map
func (m *Message) CopyFrom(src *Message) {
	if src == nil || src == m {
		return
	}
	m.Body = src.Body
	m.Headers = DefaultHeadersFactory.NewMap(src.Headers)
}

// Copy 复制
func (m *Message) Copy() *Message {
	c := &Message{}
	c.CopyFrom(m)
	if c.Headers == nil {
		c.Headers = make(map[string]interface{})
	}
	return c
}
