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

package pollenrich

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/memory"
	"github.com/rulego/pollenrich/endpoint"
	"github.com/rulego/pollenrich/test"
	"github.com/rulego/pollenrich/utils/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryComponent(t *testing.T) *memory.Component {
	c, ok := endpoint.Registry.Get(memory.Scheme)
	require.True(t, ok)
	return c.(*memory.Component)
}

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig(types.WithLogger(types.NopLogger()))
	assert.NotNil(t, config.Properties)
	assert.NotNil(t, config.DynamicAwareResolver)
	assert.NotNil(t, config.Pool)
	assert.NotNil(t, config.HeadersFactory)
	p, ok := config.EndpointRegistry.(*endpoint.Pool)
	require.True(t, ok)
	assert.Equal(t, config.Logger, p.Config().Logger)

	resolver := properties.FromMap(map[string]interface{}{"queue": "q"})
	config = NewConfig(types.WithProperties(resolver))
	assert.Equal(t, resolver, config.Properties)
}

func TestPollEnrichInstances(t *testing.T) {
	g := &PollEnrich{}
	defer g.Stop()
	config := NewConfig(types.WithLogger(types.NopLogger()))

	enricher, err := g.New("facade1", config, types.Configuration{"uri": "memory:facade1", "timeoutMillis": 1000})
	require.NoError(t, err)
	assert.Equal(t, "facade1", enricher.Id())

	same, err := g.New("facade1", config, types.Configuration{"uri": "memory:other"})
	require.NoError(t, err)
	assert.Same(t, enricher, same)

	got, ok := g.Get("facade1")
	require.True(t, ok)
	assert.Same(t, enricher, got)

	require.NoError(t, memoryComponent(t).SendBody("facade1", "world", nil))
	ex := types.NewExchangeWithBody(types.InOnly, "hello", nil)
	cb := test.NewCallback()
	assert.True(t, enricher.Process(ex, cb))
	require.NoError(t, ex.Err())
	assert.Equal(t, "world", ex.In().Body)
	assert.Equal(t, 1, cb.Count())

	g.Del("facade1")
	_, ok = g.Get("facade1")
	assert.False(t, ok)
	assert.False(t, enricher.IsStarted())
}

func TestPollEnrichInvalidConfiguration(t *testing.T) {
	g := &PollEnrich{}
	_, err := g.New("invalid", NewConfig(types.WithLogger(types.NopLogger())), types.Configuration{})
	assert.Error(t, err)
	_, ok := g.Get("invalid")
	assert.False(t, ok)
}

func TestPollEnrichAsync(t *testing.T) {
	g := &PollEnrich{}
	defer g.Stop()
	enricher, err := g.New("", NewConfig(types.WithLogger(types.NopLogger())),
		types.Configuration{"uri": "memory:facadeAsync", "timeoutMillis": 2000})
	require.NoError(t, err)

	ex := types.NewExchangeWithBody(types.InOnly, "hello", nil)
	cb := test.NewCallback()
	assert.False(t, enricher.ProcessAsync(ex, cb))
	require.NoError(t, memoryComponent(t).SendBody("facadeAsync", "later", nil))
	require.True(t, cb.Wait(3*time.Second))
	assert.Equal(t, []bool{false}, cb.DoneSync())
	assert.Equal(t, "later", ex.In().Body)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrichers.yaml")
	content := `
enrichers:
  - id: loaded1
    uri: "memory:loaded1"
    timeoutMillis: 0
  - id: loaded2
    dynamicExpression: "memory:${header.queue}"
    aggregationStrategy: useOriginal
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	g := &PollEnrich{}
	defer g.Stop()
	require.NoError(t, g.Load(path, NewConfig(types.WithLogger(types.NopLogger()))))

	e1, ok := g.Get("loaded1")
	require.True(t, ok)
	assert.Equal(t, int64(0), e1.Config.TimeoutMillis)
	assert.Equal(t, "memory:loaded1", e1.Uri())

	e2, ok := g.Get("loaded2")
	require.True(t, ok)
	assert.Equal(t, "memory:${header.queue}", e2.Config.DynamicExpression)

	assert.Error(t, g.Load(filepath.Join(t.TempDir(), "missing.yaml"), NewConfig()))
}

func TestRegister(t *testing.T) {
	c := test.NewComponent("facademock")
	require.NoError(t, Register(c, "facadealias"))
	got, ok := endpoint.Registry.Get("facadealias")
	require.True(t, ok)
	assert.Same(t, c, got)

	assert.Error(t, Register(test.NewComponent("facademock")))
	require.NoError(t, Unregister("facademock"))
	_, ok = endpoint.Registry.Get("facademock")
	assert.False(t, ok)

	assert.Error(t, RegisterPlugin(filepath.Join(t.TempDir(), "missing.so")))
}
