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

// Package http provides the `http:` component, also registered as `https:`, which polls a
// url with a request per attempt.
//
// A response with content becomes the resource exchange. 204 and 404 mean that nothing is
// available yet, so waiting polls retry every pollInterval. Other failures are errors.
// Requests of an endpoint go through a circuit breaker that opens after breakerFailures
// consecutive server errors.
//
// Uri parameters that are not options of the component are sent as the query string.
//
// Uri format:
//
//	http://127.0.0.1:8080/api/orders/next?tenant=a&timeout=2s
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/maps"
	"github.com/rulego/pollenrich/utils/uri"
	"github.com/sony/gobreaker"
)

// Scheme 组件默认名称
const Scheme = "http"

// HeaderResponseCode is the status code of the response.
const HeaderResponseCode = "HttpResponseCode"

// StatusError is returned for responses that are neither a success nor an absence of content.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return "unexpected http response: " + e.Status
}

// Options 端点参数
type Options struct {
	// Method 请求方法，默认GET
	Method string
	// Timeout 单次请求超时时间
	Timeout time.Duration
	// PollInterval 没有内容时的重试间隔
	PollInterval time.Duration
	// BreakerFailures 连续失败多少次后熔断，0表示不使用熔断器
	BreakerFailures uint32
	// BreakerTimeout 熔断后多久进入半开状态
	BreakerTimeout time.Duration
	// BreakerMaxRequests 半开状态允许的请求数
	BreakerMaxRequests uint32
}

type endpointParams struct {
	base.EndpointOptions `mapstructure:",squash"`
	Options              `mapstructure:",squash"`
}

// Component http组件
type Component struct{}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	params := endpointParams{Options: Options{
		Method:             http.MethodGet,
		Timeout:            5 * time.Second,
		PollInterval:       time.Second,
		BreakerFailures:    5,
		BreakerTimeout:     30 * time.Second,
		BreakerMaxRequests: 1,
	}}
	unused, err := maps.Map2StructUnused(maps.StringMap(de.Params()), &params)
	if err != nil {
		return nil, err
	}
	hostPart, pathPart, _ := strings.Cut(de.Path(), "/")
	if hostPart == "" {
		return nil, fmt.Errorf("http uri has no host. uri=%s", rawUri)
	}
	target := &url.URL{Scheme: uri.Scheme(rawUri)}
	target.Host = hostPart
	target.Path = "/" + pathPart
	query := url.Values{}
	for _, k := range unused {
		query.Set(k, de.Params()[k])
	}
	target.RawQuery = query.Encode()

	e := &Endpoint{
		DefaultEndpoint: de,
		options:         params.Options,
		target:          target.String(),
		client:          &http.Client{Timeout: params.Options.Timeout},
	}
	e.options.Method = strings.ToUpper(e.options.Method)
	if e.options.BreakerFailures > 0 {
		failures := e.options.BreakerFailures
		e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        target.Host + target.Path,
			MaxRequests: e.options.BreakerMaxRequests,
			Timeout:     e.options.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: isSuccessful,
			OnStateChange: func(name string, from, to gobreaker.State) {
				e.Logger().Infof("http circuit breaker %s changed from %s to %s", name, from, to)
			},
		})
	}
	return e, nil
}

// isSuccessful 只有传输错误和5xx响应计为熔断器的失败
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Endpoint http端点
type Endpoint struct {
	*base.DefaultEndpoint
	options Options
	target  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Target returns the requested url.
func (e *Endpoint) Target() string {
	return e.target
}

// BreakerState returns the state of the circuit breaker, closed when it is disabled.
func (e *Endpoint) BreakerState() gobreaker.State {
	if e.breaker == nil {
		return gobreaker.StateClosed
	}
	return e.breaker.State()
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(false), base.PollerFunc(e.poll), e.Logger(),
		e.Options().ShutdownTimeout), nil
}

func (e *Endpoint) poll(ctx context.Context, _ *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	return base.PollEvery(ctx, timeout, e.options.PollInterval, e.request)
}

func (e *Endpoint) request(ctx context.Context) (*types.Exchange, error) {
	if e.breaker == nil {
		return e.do(ctx)
	}
	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.do(ctx)
	})
	if err != nil {
		return nil, err
	}
	ex, _ := result.(*types.Exchange)
	return ex, nil
}

func (e *Endpoint) do(ctx context.Context) (*types.Exchange, error) {
	req, err := http.NewRequestWithContext(ctx, e.options.Method, e.target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]interface{}, len(resp.Header)+1)
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	headers[HeaderResponseCode] = resp.StatusCode
	return types.NewExchangeWithBody(types.InOnly, body, headers), nil
}
