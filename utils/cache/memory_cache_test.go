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

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.StopGC()

	c.Set("a", 1, 0)
	c.Set("b", "v", time.Hour)
	assert.Equal(t, 1, c.Get("a"))
	assert.Equal(t, "v", c.Get("b"))
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("missing"))
	assert.Nil(t, c.Get("missing"))

	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheExpiration(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	defer c.StopGC()

	c.Set("short", 1, 20*time.Millisecond)
	c.Set("forever", 2, 0)
	assert.True(t, c.Has("short"))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, c.Has("short"))
	assert.Nil(t, c.Get("short"))
	assert.True(t, c.Has("forever"))

	assert.Eventually(t, func() bool {
		return c.Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.ticker == nil
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("dir/a", 1, 0)
	c.Set("dir/b", 2, 0)
	c.Set("other", 3, 0)
	c.DeleteByPrefix("dir/")
	assert.False(t, c.Has("dir/a"))
	assert.False(t, c.Has("dir/b"))
	assert.True(t, c.Has("other"))
}

func TestMemoryCacheStopGC(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	c.Set("a", 1, time.Hour)
	c.mu.RLock()
	assert.NotNil(t, c.ticker)
	c.mu.RUnlock()
	c.StopGC()
	c.StopGC()
	c.mu.RLock()
	assert.Nil(t, c.ticker)
	c.mu.RUnlock()
}
