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

package maps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type EndpointOptions struct {
	BridgeErrorHandler bool
	ShutdownTimeout    time.Duration
}

type fileOptions struct {
	EndpointOptions `mapstructure:",squash"`
	FileName        string
	Include         string
	Exclude         []string
	Noop            bool
	PollInterval    time.Duration
}

func TestMap2Struct(t *testing.T) {
	configuration := map[string]interface{}{
		"dynamicExpression": "file:inbox?fileName=${header.name}",
		"timeoutMillis":     float64(500),
		"poolCapacity":      "10",
	}
	var c struct {
		DynamicExpression string
		TimeoutMillis     int64
		PoolCapacity      int
	}
	require.NoError(t, Map2Struct(configuration, &c))
	assert.Equal(t, "file:inbox?fileName=${header.name}", c.DynamicExpression)
	assert.Equal(t, int64(500), c.TimeoutMillis)
	assert.Equal(t, 10, c.PoolCapacity)

	var timeout struct{ Timeout time.Duration }
	assert.Error(t, Map2Struct(map[string]interface{}{"timeout": "5invalid"}, &timeout))
	assert.Error(t, Map2Struct(configuration, c))
	assert.Error(t, Map2Struct("not a map", &c))
	assert.NoError(t, Map2Struct(nil, &c))
}

func TestMap2StructUriParams(t *testing.T) {
	opts := fileOptions{PollInterval: time.Second}
	err := Map2Struct(StringMap(map[string]string{
		"bridgeErrorHandler": "true",
		"shutdownTimeout":    "500ms",
		"noop":               "true",
		"include":            "*.csv",
		"exclude":            "tmp*,*.part",
	}), &opts)
	require.NoError(t, err)
	assert.True(t, opts.BridgeErrorHandler)
	assert.Equal(t, 500*time.Millisecond, opts.ShutdownTimeout)
	assert.True(t, opts.Noop)
	assert.Equal(t, "*.csv", opts.Include)
	assert.Equal(t, []string{"tmp*", "*.part"}, opts.Exclude)
	// 未设置的参数保留默认值
	assert.Equal(t, time.Second, opts.PollInterval)

	assert.Error(t, Map2Struct(StringMap(map[string]string{"noop": "maybe"}), &opts))
}

func TestMap2StructUnused(t *testing.T) {
	var opts fileOptions
	unused, err := Map2StructUnused(StringMap(map[string]string{
		"noop":     "true",
		"fileName": "a.txt",
		"tenant":   "a",
	}), &opts)
	require.NoError(t, err)
	assert.True(t, opts.Noop)
	assert.Equal(t, "a.txt", opts.FileName)
	assert.Equal(t, []string{"tenant"}, unused)
}

func TestStringMap(t *testing.T) {
	m := StringMap(map[string]string{"a": "1"})
	assert.Equal(t, map[string]interface{}{"a": "1"}, m)
	assert.Empty(t, StringMap(nil))
}
