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

// Package pool provides a bounded worker pool used to run asynchronous enrichments.
//
// Package pool 提供有界协程池，用于执行异步富化任务。
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrPoolFull is returned by Submit when all workers are busy.
	ErrPoolFull = errors.New("no idle workers")
	// ErrPoolReleased is returned by Submit after Release.
	ErrPoolReleased = errors.New("worker pool is released")
)

// WorkerPool runs submitted tasks on at most MaxWorkersCount goroutines.
// Submit never blocks: when every worker is busy the task is rejected.
//
// WorkerPool 最多使用 MaxWorkersCount 个协程执行任务，池满时拒绝提交。
type WorkerPool struct {
	// MaxWorkersCount 最大工作协程数，<=0 时使用 runtime.NumCPU()*256
	MaxWorkersCount int

	once sync.Once
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	// mu 保证 released 检查与 wg.Add 不会和 Release 交错
	mu       sync.RWMutex
	released bool
	running  int64
}

// NewWorkerPool creates a pool with maxWorkers workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	return &WorkerPool{MaxWorkersCount: maxWorkers}
}

func (wp *WorkerPool) init() {
	wp.once.Do(func() {
		if wp.MaxWorkersCount <= 0 {
			wp.MaxWorkersCount = runtime.NumCPU() * 256
		}
		wp.sem = semaphore.NewWeighted(int64(wp.MaxWorkersCount))
	})
}

func (wp *WorkerPool) isReleased() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.released
}

// Submit 提交一个任务，如果协程池满返回 ErrPoolFull
func (wp *WorkerPool) Submit(task func()) error {
	if task == nil {
		return nil
	}
	wp.init()
	if wp.isReleased() {
		return ErrPoolReleased
	}
	if !wp.sem.TryAcquire(1) {
		return ErrPoolFull
	}
	return wp.run(task)
}

// SubmitWait 提交任务，池满时阻塞直到有空闲协程或ctx取消
func (wp *WorkerPool) SubmitWait(ctx context.Context, task func()) error {
	if task == nil {
		return nil
	}
	wp.init()
	if wp.isReleased() {
		return ErrPoolReleased
	}
	if err := wp.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	return wp.run(task)
}

// run starts task on a worker whose semaphore slot is already held.
func (wp *WorkerPool) run(task func()) error {
	wp.mu.RLock()
	if wp.released {
		wp.mu.RUnlock()
		wp.sem.Release(1)
		return ErrPoolReleased
	}
	wp.wg.Add(1)
	wp.mu.RUnlock()

	atomic.AddInt64(&wp.running, 1)
	go func() {
		defer func() {
			atomic.AddInt64(&wp.running, -1)
			wp.sem.Release(1)
			wp.wg.Done()
		}()
		task()
	}()
	return nil
}

// Running returns the number of tasks in progress.
func (wp *WorkerPool) Running() int {
	return int(atomic.LoadInt64(&wp.running))
}

// Release rejects new tasks and waits for running ones to finish.
// No task starts after Release returns.
func (wp *WorkerPool) Release() {
	wp.mu.Lock()
	if wp.released {
		wp.mu.Unlock()
		return
	}
	wp.released = true
	wp.mu.Unlock()
	wp.wg.Wait()
}
