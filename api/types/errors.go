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

import (
	"errors"
	"strings"
)

// Error kinds recorded on an exchange by the poll enricher. Use errors.Is to test for them.
var (
	// ErrPreCheck pipeline specific precondition failed
	ErrPreCheck = errors.New("pre poll check failed")
	// ErrEvaluation the target expression failed
	ErrEvaluation = errors.New("target evaluation failed")
	// ErrResolution uri conversion or placeholder expansion failed
	ErrResolution = errors.New("endpoint resolution failed")
	// ErrAcquisition the polling consumer could not be created
	ErrAcquisition = errors.New("polling consumer acquisition failed")
	// ErrPoll the consumer failed while polling
	ErrPoll = errors.New("poll failed")
	// ErrAggregation the aggregation strategy failed
	ErrAggregation = errors.New("aggregation failed")
)

var (
	ErrComponentNotFound = errors.New("component not found")
	ErrServiceStopped    = errors.New("service is stopped")
	ErrNoTypeConversion  = errors.New("no type conversion available")
)

// ExchangeError 交换处理错误，记录错误类别、交换ID和原因
// ExchangeError is a failure recorded on an exchange. errors.Is matches both Kind and Cause.
type ExchangeError struct {
	Kind       error
	ExchangeId string
	Message    string
	Cause      error
}

// NewExchangeError creates an ExchangeError for exchange, which may be nil.
func NewExchangeError(kind error, exchange *Exchange, message string, cause error) *ExchangeError {
	e := &ExchangeError{Kind: kind, Message: message, Cause: cause}
	if exchange != nil {
		e.ExchangeId = exchange.Id()
	}
	return e
}

func (e *ExchangeError) Error() string {
	var sb strings.Builder
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.ExchangeId != "" {
		sb.WriteString(" on the exchange: ")
		sb.WriteString(e.ExchangeId)
	}
	if e.Cause != nil {
		sb.WriteString(". Caused by: ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *ExchangeError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
