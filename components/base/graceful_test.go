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

package base

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/stretchr/testify/assert"
)

func TestGracefulStopWaitsForOperations(t *testing.T) {
	var g GracefulShutdown
	g.InitGracefulShutdown(types.NopLogger(), time.Second)
	assert.Nil(t, g.BeginOperation())
	assert.Equal(t, int64(1), g.GetActiveOperations())

	go func() {
		time.Sleep(50 * time.Millisecond)
		g.EndOperation()
	}()
	var stopped int32
	g.GracefulStop(func() { atomic.StoreInt32(&stopped, 1) })

	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))
	assert.Equal(t, int64(0), g.GetActiveOperations())
	assert.NotNil(t, g.GetShutdownContext().Err())
	assert.True(t, g.IsShuttingDown())
	assert.Equal(t, ErrShuttingDown, g.BeginOperation())

	// 第二次停止不再执行清理
	g.GracefulStop(func() { atomic.StoreInt32(&stopped, 2) })
	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))
}

func TestGracefulStopTimeout(t *testing.T) {
	var g GracefulShutdown
	g.InitGracefulShutdown(types.NopLogger(), 30*time.Millisecond)
	assert.Nil(t, g.BeginOperation())

	start := time.Now()
	g.GracefulStop(nil)
	assert.True(t, time.Since(start) >= 30*time.Millisecond)
	assert.NotNil(t, g.GetShutdownContext().Err())
	g.EndOperation()
}

func TestGracefulNegativeTimeoutCancelsImmediately(t *testing.T) {
	var g GracefulShutdown
	assert.Nil(t, g.GetShutdownContext().Err())
	g.InitGracefulShutdown(nil, -1)
	assert.Nil(t, g.BeginOperation())
	g.GracefulStop(nil)
	assert.NotNil(t, g.GetShutdownContext().Err())
	assert.False(t, g.WaitForActiveOperations(10*time.Millisecond))
}
