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

package types

// Lifecycle hooks. Any collaborator may implement a subset of them; the lifecycle helpers in
// `components/base` call whichever hooks are present.
// 生命周期钩子，协作者可按需实现其中的部分接口。

type Builder interface {
	Build() error
}

type Initializer interface {
	Init() error
}

type Starter interface {
	Start() error
}

type Stopper interface {
	Stop() error
}

type Shutdowner interface {
	Shutdown() error
}

// Service is a collaborator with the full lifecycle:
// Build, Init, Start, Stop and Shutdown, each called once and in that order.
type Service interface {
	Builder
	Initializer
	Starter
	Stopper
	Shutdowner
}
