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
	"errors"
	"testing"

	"github.com/rulego/pollenrich/api/types"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	ServiceSupport
	calls []string
}

func newRecorder(startErr error) *recorder {
	r := &recorder{}
	r.SetHooks(Hooks{
		Build:    func() error { r.calls = append(r.calls, "build"); return nil },
		Init:     func() error { r.calls = append(r.calls, "init"); return nil },
		Start:    func() error { r.calls = append(r.calls, "start"); return startErr },
		Stop:     func() error { r.calls = append(r.calls, "stop"); return nil },
		Shutdown: func() error { r.calls = append(r.calls, "shutdown"); return nil },
	})
	return r
}

func TestServiceSupportOrder(t *testing.T) {
	r := newRecorder(nil)
	assert.Equal(t, StateNew, r.State())
	assert.Nil(t, r.Start())
	assert.Nil(t, r.Start())
	assert.True(t, r.IsStarted())
	assert.Nil(t, r.Build())
	assert.Nil(t, r.Stop())
	assert.Nil(t, r.Stop())
	assert.Nil(t, r.Shutdown())
	assert.Nil(t, r.Shutdown())
	assert.Equal(t, []string{"build", "init", "start", "stop", "shutdown"}, r.calls)
	assert.Equal(t, StateShutdown, r.State())
	assert.Equal(t, "shutdown", r.State().String())

	err := r.Start()
	assert.True(t, errors.Is(err, types.ErrServiceStopped))
}

func TestServiceSupportShutdownWithoutStart(t *testing.T) {
	r := newRecorder(nil)
	assert.Nil(t, r.Init())
	assert.Nil(t, r.Shutdown())
	assert.Equal(t, []string{"build", "init", "shutdown"}, r.calls)
}

func TestServiceSupportStartError(t *testing.T) {
	startErr := errors.New("boom")
	r := newRecorder(startErr)
	assert.Equal(t, startErr, r.Start())
	assert.Equal(t, StateInitialized, r.State())
	assert.False(t, r.IsStarted())
}

type stopOnly struct {
	stopped int
}

func (s *stopOnly) Stop() error {
	s.stopped++
	return errors.New("stop failed")
}

type fullService struct {
	calls []string
}

func (s *fullService) Build() error    { s.calls = append(s.calls, "build"); return nil }
func (s *fullService) Init() error     { s.calls = append(s.calls, "init"); return nil }
func (s *fullService) Start() error    { s.calls = append(s.calls, "start"); return nil }
func (s *fullService) Stop() error     { s.calls = append(s.calls, "stop"); return nil }
func (s *fullService) Shutdown() error { s.calls = append(s.calls, "shutdown"); return nil }

func TestLifecycleHelpers(t *testing.T) {
	s := &fullService{}
	var none interface{}
	assert.Nil(t, BuildService(s, none, "not a service"))
	assert.Nil(t, InitService(s, none))
	assert.Nil(t, StartService(s, none))
	assert.Nil(t, StopAndShutdownService(s, none))
	assert.Equal(t, []string{"build", "init", "start", "stop", "shutdown"}, s.calls)

	first, second := &stopOnly{}, &stopOnly{}
	err := StopService(first, second)
	assert.NotNil(t, err)
	assert.Equal(t, 1, first.stopped)
	assert.Equal(t, 1, second.stopped)

	r := newRecorder(nil)
	assert.Nil(t, StartService(r))
	assert.Nil(t, StopAndShutdownService(r))
	assert.Equal(t, []string{"build", "init", "start", "stop", "shutdown"}, r.calls)
}

func TestSharedClients(t *testing.T) {
	var closed []string
	clients := NewSharedClients[string](func(c string) error {
		closed = append(closed, c)
		return nil
	})
	created := 0
	create := func() (string, error) {
		created++
		return "client", nil
	}
	c1, err := clients.Acquire("localhost:6379", create)
	assert.Nil(t, err)
	c2, err := clients.Acquire("localhost:6379", create)
	assert.Nil(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, 1, created)
	assert.Equal(t, 2, clients.Refs("localhost:6379"))

	assert.Nil(t, clients.Release("localhost:6379"))
	assert.Equal(t, 0, len(closed))
	assert.Nil(t, clients.Release("localhost:6379"))
	assert.Equal(t, []string{"client"}, closed)
	assert.Equal(t, 0, clients.Refs("localhost:6379"))
	assert.Nil(t, clients.Release("unknown"))

	_, err = clients.Acquire("other", nil)
	assert.Equal(t, ErrClientNotInit, err)
	_, err = clients.Acquire("other", func() (string, error) { return "", errors.New("dial") })
	assert.NotNil(t, err)
	assert.Equal(t, 0, clients.Refs("other"))
}
