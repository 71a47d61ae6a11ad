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
	"fmt"
	"sync"

	"github.com/rulego/pollenrich/api/types"
)

// ServiceState 服务生命周期状态
type ServiceState int32

const (
	StateNew ServiceState = iota
	StateBuilt
	StateInitialized
	StateStarted
	StateStopped
	StateShutdown
)

func (s ServiceState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateShutdown:
		return "shutdown"
	default:
		return "new"
	}
}

// Hooks are the lifecycle callbacks of a ServiceSupport. Any of them can be nil.
type Hooks struct {
	Build    func() error
	Init     func() error
	Start    func() error
	Stop     func() error
	Shutdown func() error
}

// ServiceSupport 服务生命周期状态机
// ServiceSupport runs each hook at most once, in the order
// Build, Init, Start, Stop and Shutdown. Calling a later phase runs the missing earlier ones.
// A stopped service cannot be started again.
//
// Usage:
//
//	type MyEndpoint struct {
//	    base.ServiceSupport
//	}
//	e := &MyEndpoint{}
//	e.SetHooks(base.Hooks{Start: e.connect, Stop: e.disconnect})
type ServiceSupport struct {
	mu    sync.Mutex
	state ServiceState
	hooks Hooks
}

var _ types.Service = (*ServiceSupport)(nil)

// SetHooks sets the lifecycle callbacks. It must be called before Build.
func (s *ServiceSupport) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

// State returns the current lifecycle state.
func (s *ServiceSupport) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ServiceSupport) IsStarted() bool {
	return s.State() == StateStarted
}

func (s *ServiceSupport) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build()
}

func (s *ServiceSupport) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.init()
}

func (s *ServiceSupport) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStarted:
		return nil
	case StateStopped, StateShutdown:
		return fmt.Errorf("cannot start a service in state %s: %w", s.state, types.ErrServiceStopped)
	}
	if err := s.init(); err != nil {
		return err
	}
	if err := run(s.hooks.Start); err != nil {
		return err
	}
	s.state = StateStarted
	return nil
}

// Stop 停止服务，未启动的服务直接标记为已停止
func (s *ServiceSupport) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop()
}

// Shutdown 停止并关闭服务，释放所有资源
func (s *ServiceSupport) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateShutdown {
		return nil
	}
	stopErr := s.stop()
	err := run(s.hooks.Shutdown)
	s.state = StateShutdown
	if stopErr != nil {
		return stopErr
	}
	return err
}

func (s *ServiceSupport) build() error {
	if s.state >= StateBuilt {
		return nil
	}
	if err := run(s.hooks.Build); err != nil {
		return err
	}
	s.state = StateBuilt
	return nil
}

func (s *ServiceSupport) init() error {
	if s.state >= StateInitialized {
		return nil
	}
	if err := s.build(); err != nil {
		return err
	}
	if err := run(s.hooks.Init); err != nil {
		return err
	}
	s.state = StateInitialized
	return nil
}

func (s *ServiceSupport) stop() error {
	if s.state >= StateStopped {
		return nil
	}
	var err error
	if s.state == StateStarted {
		err = run(s.hooks.Stop)
	}
	s.state = StateStopped
	return err
}

func run(fn func() error) error {
	if fn == nil {
		return nil
	}
	return fn()
}
