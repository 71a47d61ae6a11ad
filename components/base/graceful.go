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

package base

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rulego/pollenrich/api/types"
)

// DefaultShutdownTimeout 默认优雅停机超时时间
const DefaultShutdownTimeout = time.Second

var ErrShuttingDown = errors.New("operation cancelled due to shutdown")

// GracefulShutdown tracks in-flight operations so that a stop waits for them before
// cancelling the shutdown context.
//
// GracefulShutdown 两阶段停机：先拒绝新操作并等待正在进行的操作完成，超时后再取消上下文。
type GracefulShutdown struct {
	shutdownCtx     context.Context
	shutdownCancel  context.CancelFunc
	shutdownTimeout time.Duration
	// isShuttingDown indicates whether the component is in shutdown process
	isShuttingDown int32
	// activeOperations tracks the number of operations currently being processed
	activeOperations int64
	logger           types.Logger
}

// InitGracefulShutdown initializes the shutdown context.
// timeout 0 uses DefaultShutdownTimeout, a negative timeout cancels without waiting.
func (g *GracefulShutdown) InitGracefulShutdown(logger types.Logger, timeout time.Duration) {
	if timeout == 0 {
		timeout = DefaultShutdownTimeout
	}
	g.shutdownTimeout = timeout
	g.logger = logger
	g.shutdownCtx, g.shutdownCancel = context.WithCancel(context.Background())
	atomic.StoreInt32(&g.isShuttingDown, 0)
}

// GetShutdownContext returns the context cancelled when the shutdown is forced.
func (g *GracefulShutdown) GetShutdownContext() context.Context {
	if g.shutdownCtx == nil {
		return context.Background()
	}
	return g.shutdownCtx
}

func (g *GracefulShutdown) IsShuttingDown() bool {
	return atomic.LoadInt32(&g.isShuttingDown) == 1
}

// BeginOperation registers an in-flight operation. It fails once shutdown started.
// Every successful call must be paired with EndOperation.
func (g *GracefulShutdown) BeginOperation() error {
	atomic.AddInt64(&g.activeOperations, 1)
	if g.IsShuttingDown() {
		atomic.AddInt64(&g.activeOperations, -1)
		return ErrShuttingDown
	}
	return nil
}

func (g *GracefulShutdown) EndOperation() {
	atomic.AddInt64(&g.activeOperations, -1)
}

func (g *GracefulShutdown) GetActiveOperations() int64 {
	return atomic.LoadInt64(&g.activeOperations)
}

// GracefulStop 拒绝新操作，等待正在进行的操作完成，超时后取消上下文，最后调用stopFunc清理
func (g *GracefulShutdown) GracefulStop(stopFunc func()) {
	if !atomic.CompareAndSwapInt32(&g.isShuttingDown, 0, 1) {
		return
	}
	if g.shutdownTimeout > 0 && !g.WaitForActiveOperations(g.shutdownTimeout) {
		g.logf("timeout waiting for %d active operations, forcing stop", g.GetActiveOperations())
	}
	if g.shutdownCancel != nil {
		g.shutdownCancel()
	}
	if stopFunc != nil {
		stopFunc()
	}
}

// WaitForActiveOperations waits until no operation is in flight.
// It returns false when timeout elapsed first.
func (g *GracefulShutdown) WaitForActiveOperations(timeout time.Duration) bool {
	if g.GetActiveOperations() <= 0 {
		return true
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			return g.GetActiveOperations() <= 0
		case <-ticker.C:
			if g.GetActiveOperations() <= 0 {
				return true
			}
		}
	}
}

func (g *GracefulShutdown) logf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Warnf(format, args...)
	}
}
