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

package processor

import (
	"github.com/rulego/pollenrich/api/types"
)

// copyResultsPreservePattern copies the result of source onto result, keeping the pattern of
// result. The out message of source lands in the out message of result for InOut exchanges
// and in the in message otherwise.
func copyResultsPreservePattern(result, source *types.Exchange) {
	if result == source {
		// an InOut exchange without out gets its in as result
		if result.Pattern().IsOutCapable() && !result.HasOut() && !result.IsFailed() {
			result.Out().CopyFrom(result.In())
		}
		return
	}
	result.In().CopyFrom(source.In())
	if source.HasOut() {
		if result.Pattern().IsOutCapable() {
			result.Out().CopyFrom(source.Out())
		} else {
			result.In().CopyFrom(source.Out())
		}
	}
	for k, v := range source.Properties() {
		result.SetProperty(k, v)
	}
	result.SetErr(source.Err())
	result.SetRedeliveryExhausted(source.IsRedeliveryExhausted())
}

// prepareResult sets the baseline result of exchange: InOut exchanges start with out = in.
func prepareResult(exchange *types.Exchange) {
	if exchange.Pattern().IsOutCapable() {
		exchange.Out().CopyFrom(exchange.In())
	}
}

// prepareAggregation moves the out message of both exchanges into their in message so that
// strategies only deal with in messages.
func prepareAggregation(original, resource *types.Exchange) {
	for _, ex := range []*types.Exchange{original, resource} {
		if ex != nil && ex.HasOut() {
			ex.SetIn(ex.Out())
			ex.SetOut(nil)
		}
	}
}

// ShouldSetVariableResult reports whether the result of exchange goes into variable name
// instead of the message body.
func ShouldSetVariableResult(exchange *types.Exchange, name string) bool {
	if name == "" || exchange == nil || exchange.IsFailed() {
		return false
	}
	return !exchange.PropertyBool(types.PropertyVariableResultDisabled)
}

// setVariableFromMessage stores the body of message in variable name and its headers in
// variable "header:name".
func setVariableFromMessage(exchange *types.Exchange, name string, message *types.Message,
	factory types.HeadersFactory) {
	exchange.SetVariable(name, message.Body)
	exchange.SetVariable(types.VariableHeadersPrefix+name, factory.NewMap(message.Headers))
}

type redeliveryHeaders struct {
	redelivered, counter, maxCounter interface{}
}

func captureRedeliveryHeaders(exchange *types.Exchange) redeliveryHeaders {
	in := exchange.In()
	return redeliveryHeaders{
		redelivered: in.GetHeader(types.HeaderRedelivered),
		counter:     in.GetHeader(types.HeaderRedeliveryCounter),
		maxCounter:  in.GetHeader(types.HeaderRedeliveryMaxCounter),
	}
}

func (h redeliveryHeaders) apply(message *types.Message) {
	if h.redelivered != nil {
		message.SetHeader(types.HeaderRedelivered, h.redelivered)
	}
	if h.counter != nil {
		message.SetHeader(types.HeaderRedeliveryCounter, h.counter)
	}
	if h.maxCounter != nil {
		message.SetHeader(types.HeaderRedeliveryMaxCounter, h.maxCounter)
	}
}
