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

package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	wp := NewWorkerPool(200000)
	var n int32
	fn := func() {
		atomic.AddInt32(&n, 1)
	}

	for i := 0; i < 10000; i++ {
		require.Nil(t, wp.Submit(fn), "cannot submit function #%d", i)
	}
	wp.Release()
	assert.Equal(t, int32(10000), atomic.LoadInt32(&n))
	assert.Equal(t, ErrPoolReleased, wp.Submit(fn))
	// 重复释放
	wp.Release()
}

func TestWorkerPoolFull(t *testing.T) {
	wp := NewWorkerPool(1)
	block := make(chan struct{})
	require.Nil(t, wp.Submit(func() {
		<-block
	}))
	assert.Equal(t, 1, wp.Running())
	assert.Equal(t, ErrPoolFull, wp.Submit(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()
	assert.NotNil(t, wp.SubmitWait(ctx, func() {}))

	close(block)
	var ran int32
	require.Nil(t, wp.SubmitWait(context.Background(), func() {
		atomic.StoreInt32(&ran, 1)
	}))
	wp.Release()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.Equal(t, 0, wp.Running())
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	wp := &WorkerPool{}
	assert.Nil(t, wp.Submit(nil))
	assert.Nil(t, wp.Submit(func() {}))
	wp.Release()
	assert.True(t, wp.MaxWorkersCount > 0)
}

func TestWorkerPoolReleaseDuringSubmit(t *testing.T) {
	wp := NewWorkerPool(0)
	var started, accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				err := wp.Submit(func() {
					atomic.AddInt32(&started, 1)
				})
				if err == ErrPoolReleased {
					return
				}
				if err == nil {
					atomic.AddInt32(&accepted, 1)
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	wp.Release()
	// 释放返回后不再有任务启动
	afterRelease := atomic.LoadInt32(&started)
	wg.Wait()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, afterRelease, atomic.LoadInt32(&started))
	assert.Equal(t, atomic.LoadInt32(&accepted), atomic.LoadInt32(&started))
}
