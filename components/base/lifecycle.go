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

	"github.com/rulego/pollenrich/api/types"
)

// BuildService builds the services that implement types.Builder, stopping at the first error.
func BuildService(services ...interface{}) error {
	for _, s := range services {
		if b, ok := s.(types.Builder); ok && b != nil {
			if err := b.Build(); err != nil {
				return err
			}
		}
	}
	return nil
}

// InitService initializes the services that implement types.Initializer.
func InitService(services ...interface{}) error {
	for _, s := range services {
		if i, ok := s.(types.Initializer); ok && i != nil {
			if err := i.Init(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StartService starts the services that implement types.Starter.
func StartService(services ...interface{}) error {
	for _, s := range services {
		if st, ok := s.(types.Starter); ok && st != nil {
			if err := st.Start(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopService 停止所有服务，出错时继续停止其余服务并返回合并后的错误
func StopService(services ...interface{}) error {
	var errs []error
	for _, s := range services {
		if st, ok := s.(types.Stopper); ok && st != nil {
			if err := st.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// StopAndShutdownService stops then shuts down every service. Services that only
// implement one of the two hooks get that hook.
func StopAndShutdownService(services ...interface{}) error {
	var errs []error
	for _, s := range services {
		if sd, ok := s.(types.Shutdowner); ok && sd != nil {
			// Shutdown of a ServiceSupport stops first, other shutdowners are stopped explicitly.
			if _, isSupport := s.(interface{ State() ServiceState }); !isSupport {
				if err := StopService(s); err != nil {
					errs = append(errs, err)
				}
			}
			if err := sd.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		} else if err := StopService(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
