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

// Redelivery headers. They describe the retry history of the exchange that carries them.
const (
	HeaderRedelivered          = "Redelivered"
	HeaderRedeliveryCounter    = "RedeliveryCounter"
	HeaderRedeliveryMaxCounter = "RedeliveryMaxCounter"
)

// Exchange properties written by processors.
const (
	// PropertyToEndpoint is the uri of the endpoint an exchange was last enriched from.
	PropertyToEndpoint = "ToEndpoint"
	// PropertyVariableResultDisabled set to true on an aggregated exchange keeps the result in
	// the message body even when a receive variable is configured.
	PropertyVariableResultDisabled = "VariableResultDisabled"
)

// VariableHeadersPrefix is the prefix of the variable holding the headers stored alongside a
// body variable: body goes to `name`, headers go to `header:name`.
const VariableHeadersPrefix = "header:"

const (
	// SchemeSeparator separates the scheme from the rest of an endpoint uri.
	SchemeSeparator = ":"
	// PlaceholderPrefix starts a property placeholder.
	PlaceholderPrefix = "{{"
	// PlaceholderSuffix ends a property placeholder.
	PlaceholderSuffix = "}}"
)
