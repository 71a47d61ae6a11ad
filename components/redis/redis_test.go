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

package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newEndpoint(t *testing.T, c *Component, uri string) (*Endpoint, types.PollingConsumer) {
	ep, err := c.CreateEndpoint(types.NewConfig(types.WithLogger(types.NopLogger())), uri, types.ScopePooled)
	require.NoError(t, err)
	require.NoError(t, ep.Start())
	consumer, err := ep.CreatePollingConsumer()
	require.NoError(t, err)
	require.NoError(t, consumer.Start())
	t.Cleanup(func() {
		_ = consumer.Stop()
		_ = ep.Stop()
	})
	return ep.(*Endpoint), consumer
}

func TestRedisPollModes(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	ctx := context.Background()
	_, consumer := newEndpoint(t, &Component{}, "redis:"+mr.Addr()+"/orders")

	ex, err := consumer.ReceiveNoWait(nil)
	assert.NoError(t, err)
	assert.Nil(t, ex)

	require.NoError(t, rdb.RPush(ctx, "orders", "a", "b").Err())
	ex, err = consumer.ReceiveNoWait(nil)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "a", ex.In().Body)
	assert.Equal(t, "orders", ex.In().GetHeader(HeaderKey))

	ex, err = consumer.ReceiveTimeout(nil, 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "b", ex.In().Body)

	start := time.Now()
	ex, err = consumer.ReceiveTimeout(nil, 100*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, ex)
	assert.True(t, time.Since(start) >= 100*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = rdb.RPush(ctx, "orders", "c").Err()
	}()
	ex, err = consumer.Receive(nil)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "c", ex.In().Body)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = rdb.RPush(ctx, "orders", "d").Err()
	}()
	ex, err = consumer.ReceiveTimeout(nil, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "d", ex.In().Body)
}

func TestRedisRPop(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	_, consumer := newEndpoint(t, &Component{}, "redis://"+mr.Addr()+"/jobs?command=RPOP")
	require.NoError(t, rdb.RPush(context.Background(), "jobs", "first", "last").Err())

	ex, err := consumer.ReceiveNoWait(nil)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "last", ex.In().Body)
}

func TestRedisSharedClient(t *testing.T) {
	mr, _ := setupTestRedis(t)
	c := &Component{}
	first, _ := newEndpoint(t, c, "redis:"+mr.Addr()+"/a")
	second, _ := newEndpoint(t, c, "redis:"+mr.Addr()+"/b?bridgeErrorHandler=true")
	assert.Same(t, first.Client(), second.Client())
	assert.Equal(t, "a", first.ListKey())
	assert.Equal(t, 2, c.sharedClients().Refs(mr.Addr()+"/0/"))

	require.NoError(t, second.Stop())
	assert.Equal(t, 1, c.sharedClients().Refs(mr.Addr()+"/0/"))
}

func TestRedisErrors(t *testing.T) {
	mr, _ := setupTestRedis(t)
	c := &Component{}
	config := types.NewConfig(types.WithLogger(types.NopLogger()))
	_, err := c.CreateEndpoint(config, "redis:"+mr.Addr(), types.ScopePooled)
	assert.Error(t, err)
	_, err = c.CreateEndpoint(config, "redis:"+mr.Addr()+"/k?command=get", types.ScopePooled)
	assert.Error(t, err)

	ep, err := c.CreateEndpoint(config, "redis:127.0.0.1:1/k?dialTimeout=100ms", types.ScopePooled)
	require.NoError(t, err)
	assert.Error(t, ep.Start())

	//服务器不可用时，bridgeErrorHandler把错误放入资源交换
	_, consumer := newEndpoint(t, c, "redis:"+mr.Addr()+"/k?bridgeErrorHandler=true")
	mr.SetError("boom")
	ex, err := consumer.ReceiveNoWait(nil)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Error(t, ex.Err())
}

func TestRedisStopWhilePolling(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	require.NoError(t, rdb.RPush(context.Background(), "orders", "a", "b", "c").Err())
	ep, consumer := newEndpoint(t, &Component{}, "redis:"+mr.Addr()+"/orders")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = consumer.ReceiveNoWait(nil)
			}
		}()
	}
	require.NoError(t, ep.Stop())
	wg.Wait()

	assert.Nil(t, ep.Client())
	_, err := consumer.ReceiveNoWait(nil)
	assert.ErrorIs(t, err, base.ErrClientNotInit)
}
