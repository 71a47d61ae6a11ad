/*
 * Copyright 2024 The RuleGo Authors.
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

// Package base provides the building blocks of connector components: the service lifecycle,
// default endpoint and polling consumer implementations, an event queue for push based
// resources and shared client management.
//
// Package base 提供连接器组件的基础实现：服务生命周期、默认端点、轮询消费者、
// 推送型资源使用的事件队列以及共享客户端管理。
package base

import (
	"errors"
	"sync"
)

var ErrClientNotInit = errors.New("client not init")

// SharedClients 共享客户端，多个端点通过相同的key获取同一个客户端实例
// 例如：相同服务器地址的redis客户端、nats连接、数据库连接池。
// 客户端在最后一个引用释放时关闭。
type SharedClients[T any] struct {
	mu      sync.Mutex
	clients map[string]*sharedClient[T]
	// Close 关闭客户端，可以为nil
	Close func(T) error
}

type sharedClient[T any] struct {
	client T
	refs   int
}

// NewSharedClients creates an empty set of shared clients closed by closeFunc.
func NewSharedClients[T any](closeFunc func(T) error) *SharedClients[T] {
	return &SharedClients[T]{clients: make(map[string]*sharedClient[T]), Close: closeFunc}
}

// Acquire 获取key对应的客户端，不存在则调用create创建，引用计数加1
func (s *SharedClients[T]) Acquire(key string, create func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		c.refs++
		return c.client, nil
	}
	if create == nil {
		return zeroValue[T](), ErrClientNotInit
	}
	client, err := create()
	if err != nil {
		return zeroValue[T](), err
	}
	s.clients[key] = &sharedClient[T]{client: client, refs: 1}
	return client, nil
}

// Release 释放一个引用，引用数为0时关闭客户端
func (s *SharedClients[T]) Release(key string) error {
	s.mu.Lock()
	c, ok := s.clients[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	c.refs--
	if c.refs > 0 {
		s.mu.Unlock()
		return nil
	}
	delete(s.clients, key)
	s.mu.Unlock()
	if s.Close != nil {
		return s.Close(c.client)
	}
	return nil
}

// Refs returns the number of references held on key.
func (s *SharedClients[T]) Refs(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c.refs
	}
	return 0
}

// zeroValue 函数用于返回 T 类型的零值
func zeroValue[T any]() T {
	var zero T
	return zero
}
