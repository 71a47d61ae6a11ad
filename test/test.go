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

// Package test provides helpers for testing the poll enricher and components:
// a scriptable mock component and a completion callback recorder.
package test

import (
	"sync"
	"time"
)

// Callback 记录异步处理完成回调的调用情况
type Callback struct {
	mu       sync.Mutex
	doneSync []bool
	done     chan struct{}
	once     sync.Once
}

// NewCallback creates a callback recorder.
func NewCallback() *Callback {
	return &Callback{done: make(chan struct{})}
}

// Done implements types.AsyncCallback.
func (c *Callback) Done(doneSync bool) {
	c.mu.Lock()
	c.doneSync = append(c.doneSync, doneSync)
	c.mu.Unlock()
	c.once.Do(func() {
		close(c.done)
	})
}

// Count returns the number of Done invocations.
func (c *Callback) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.doneSync)
}

// DoneSync returns the doneSync argument of every invocation.
func (c *Callback) DoneSync() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.doneSync...)
}

// Wait waits for the first Done invocation. It returns false on timeout.
func (c *Callback) Wait(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
