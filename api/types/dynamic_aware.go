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

// DynamicAwareEntry is produced by PollDynamicAware.Prepare for one evaluation.
// It is never cached.
type DynamicAwareEntry struct {
	// Uri is the evaluated dynamic uri.
	Uri string
	// OriginalUri is the configured uri before evaluation.
	OriginalUri string
	// Properties are the endpoint options parsed from Uri.
	Properties map[string]string
	// LenientProperties are options the component does not know about.
	LenientProperties map[string]string
}

// PollDynamicAware 动态端点优化器
// PollDynamicAware rewrites dynamic uris of one scheme into a static form so that a single
// cached consumer can serve many evaluated targets. Values removed from the uri are carried
// on the exchange instead.
type PollDynamicAware interface {
	Scheme() string
	// SetScheme is used when the optimizer serves an alias of its component.
	SetScheme(scheme string)
	Prepare(exchange *Exchange, uri, originalUri string) (*DynamicAwareEntry, error)
	// ResolveStaticUri returns the static uri, or "" when the entry cannot be optimised.
	ResolveStaticUri(exchange *Exchange, entry *DynamicAwareEntry) (string, error)
}

// DynamicAwareResolver looks up the optimizer for a scheme.
type DynamicAwareResolver interface {
	Resolve(scheme string) (PollDynamicAware, bool)
}
