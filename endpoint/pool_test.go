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

package endpoint

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/test"
)

func newTestPool(t *testing.T) (*Pool, *test.Component) {
	t.Helper()
	r := NewComponentRegistry()
	mock := test.NewComponent("")
	require.NoError(t, r.Register(mock))
	return NewPool(types.NewConfig(types.WithLogger(types.NopLogger())), r), mock
}

func TestGetEndpointIsPooled(t *testing.T) {
	p, mock := newTestPool(t)
	defer p.Shutdown()

	e1, err := p.GetEndpoint("mock:queue?b=2&a=1")
	require.NoError(t, err)
	e2, err := p.GetEndpoint("MOCK:queue?a=1&b=2")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, "mock:queue?a=1&b=2", e1.URI())
	assert.Equal(t, types.ScopePooled, e1.Scope())
	assert.Equal(t, int32(1), atomic.LoadInt32(&mock.EndpointsCreated))
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, int32(1), atomic.LoadInt32(&e1.(*test.Endpoint).Started))
	assert.Same(t, p, e1.(*test.Endpoint).Config().EndpointRegistry)
}

func TestGetEndpointConcurrent(t *testing.T) {
	p, mock := newTestPool(t)
	defer p.Shutdown()

	var wg sync.WaitGroup
	endpoints := make([]types.Endpoint, 20)
	for i := range endpoints {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			endpoints[i], _ = p.GetEndpoint("mock:shared")
		}(i)
	}
	wg.Wait()
	for _, e := range endpoints {
		assert.Same(t, endpoints[0], e)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&mock.EndpointsCreated))
}

func TestGetPrototypeEndpoint(t *testing.T) {
	p, mock := newTestPool(t)
	defer p.Shutdown()

	e1, err := p.GetPrototypeEndpoint("mock:queue")
	require.NoError(t, err)
	e2, err := p.GetPrototypeEndpoint("mock:queue")
	require.NoError(t, err)
	assert.NotSame(t, e1, e2)
	assert.Equal(t, types.ScopePrototype, e1.Scope())
	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(2), atomic.LoadInt32(&mock.EndpointsCreated))
}

func TestGetEndpointErrors(t *testing.T) {
	p, _ := newTestPool(t)
	defer p.Shutdown()

	_, err := p.GetEndpoint("no scheme")
	assert.Error(t, err)
	_, err = p.GetEndpoint("unknown:queue")
	assert.ErrorIs(t, err, types.ErrComponentNotFound)
	_, err = p.GetPrototypeEndpoint("unknown:queue")
	assert.ErrorIs(t, err, types.ErrComponentNotFound)
}

func TestPoolStopShutsDownEndpoints(t *testing.T) {
	p, _ := newTestPool(t)
	e, err := p.GetEndpoint("mock:a")
	require.NoError(t, err)
	_, err = p.GetEndpoint("mock:b")
	require.NoError(t, err)
	assert.Len(t, p.Endpoints(), 2)
	assert.Equal(t, "mock:a", p.Endpoints()[0].URI())

	require.NoError(t, p.Remove("mock:a"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&e.(*test.Endpoint).ShutdownCount))
	assert.Equal(t, 1, p.Size())

	require.NoError(t, p.Shutdown())
	assert.Equal(t, 0, p.Size())
}
