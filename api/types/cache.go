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

import "time"

// Cache is a key value store with optional expiration. Implementations must be safe for
// concurrent use. The file component records the files it consumed in noop mode in one.
type Cache interface {
	// Set stores value under key. ttl <= 0 never expires.
	Set(key string, value interface{}, ttl time.Duration)
	// Get returns the value of key, nil when missing or expired.
	Get(key string) interface{}
	// Has reports whether key exists and has not expired.
	Has(key string) bool
	Delete(key string)
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(prefix string)
	// Len returns the number of stored keys, expired ones included until collected.
	Len() int
}
