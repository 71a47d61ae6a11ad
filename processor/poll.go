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
	"time"

	"github.com/rulego/pollenrich/api/types"
)

// PollMode 轮询等待方式
type PollMode int

const (
	// Unbounded blocks until a resource exchange is available.
	Unbounded PollMode = iota
	// NoWait returns immediately.
	NoWait
	// Bounded blocks up to the configured timeout.
	Bounded
)

func (m PollMode) String() string {
	switch m {
	case NoWait:
		return "NoWait"
	case Bounded:
		return "Bounded"
	default:
		return "Unbounded"
	}
}

// SelectPollMode maps a timeout in milliseconds to its poll mode:
// negative is Unbounded, zero is NoWait and positive is Bounded.
func SelectPollMode(timeoutMillis int64) PollMode {
	switch {
	case timeoutMillis < 0:
		return Unbounded
	case timeoutMillis == 0:
		return NoWait
	default:
		return Bounded
	}
}

// receive polls consumer once in the mode selected by timeoutMillis.
// The in-flight exchange is only handed to exchange aware consumers.
func receive(consumer types.PollingConsumer, caps types.ConsumerCapabilities, exchange *types.Exchange,
	timeoutMillis int64, logger types.Logger) (*types.Exchange, error) {
	var in *types.Exchange
	if caps.ExchangeAware {
		in = exchange
	}
	switch SelectPollMode(timeoutMillis) {
	case Unbounded:
		if logger.IsDebugEnabled() {
			logger.Debugf("consumer receive: %s", consumer.Endpoint().URI())
		}
		return consumer.Receive(in)
	case NoWait:
		if logger.IsDebugEnabled() {
			logger.Debugf("consumer receiveNoWait: %s", consumer.Endpoint().URI())
		}
		return consumer.ReceiveNoWait(in)
	default:
		if logger.IsDebugEnabled() {
			logger.Debugf("consumer receive with timeout: %d ms. %s", timeoutMillis, consumer.Endpoint().URI())
		}
		return consumer.ReceiveTimeout(in, time.Duration(timeoutMillis)*time.Millisecond)
	}
}
