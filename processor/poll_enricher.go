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

// Package processor implements the poll enricher: it polls a dynamically computed endpoint
// and merges the polled resource into the in-flight exchange.
//
// Package processor 轮询富化处理器：动态计算目标端点，轮询资源并合并到当前交换。
//
// Configuration example:
//
//	{
//		"dynamicExpression": "file:inbox?fileName=${header.fileName}",
//		"timeoutMillis": 500,
//		"aggregationStrategy": "copy",
//		"receiveIntoVariable": "file"
//	}
package processor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/api/types/metrics"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/pool"
	"github.com/rulego/pollenrich/utils/el"
	"github.com/rulego/pollenrich/utils/maps"
	"github.com/rulego/pollenrich/utils/runtime"
	"github.com/rulego/pollenrich/utils/str"
	"github.com/rulego/pollenrich/utils/uri"
)

// DefaultTimeoutMillis waits without bound.
const DefaultTimeoutMillis int64 = -1

var enricherSeq int64

// Ensure that PollEnricher implements the types.AsyncProcessor interface.
var _ types.AsyncProcessor = (*PollEnricher)(nil)

// Config 轮询富化配置
type Config struct {
	// DynamicExpression computes the uri to poll, for example `file:inbox?fileName=${header.name}`.
	// If empty, Uri is polled.
	DynamicExpression string
	// Uri is the static uri to poll.
	Uri string
	// TimeoutMillis <0 blocks until a resource arrives, 0 does not wait, >0 waits up to the timeout.
	TimeoutMillis int64
	// AggregationStrategy is a types.AggregationStrategy or the name of a registered strategy.
	// Default: copy
	AggregationStrategy interface{}
	// AggregateOnException invokes the strategy even when the resource exchange failed.
	AggregateOnException bool
	// PoolCapacity is the consumer cache capacity. <=0 creates a prototype endpoint and consumer per poll.
	PoolCapacity int
	// IgnoreInvalidTarget turns evaluation, resolution and acquisition errors into a no-op.
	IgnoreInvalidTarget bool
	// ReceiveIntoVariable stores the result in this variable instead of the message body.
	ReceiveIntoVariable string
	// AutoStartDependency starts the component owning the target scheme.
	AutoStartDependency bool
	// AllowOptimization rewrites dynamic uris through the optimizer of the target scheme.
	AllowOptimization bool
	// ExpressionLanguage of DynamicExpression: expr (default), cel or js.
	ExpressionLanguage string
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutMillis:       DefaultTimeoutMillis,
		PoolCapacity:        pool.DefaultCapacity,
		AutoStartDependency: true,
		AllowOptimization:   true,
		ExpressionLanguage:  el.LangExpr,
	}
}

// Option customizes a PollEnricher.
type Option func(p *PollEnricher)

// WithId sets the id used in logs and metrics.
func WithId(id string) Option {
	return func(p *PollEnricher) {
		p.id = id
	}
}

// WithRouteId sets the id of the route the enricher belongs to.
func WithRouteId(routeId string) Option {
	return func(p *PollEnricher) {
		p.routeId = routeId
	}
}

// WithPreCheck sets a check run before each poll. An error fails the exchange.
func WithPreCheck(check func(exchange *types.Exchange) error) Option {
	return func(p *PollEnricher) {
		p.preCheck = check
	}
}

// WithExpression sets the target expression, taking precedence over the configuration.
func WithExpression(expression types.Expression) Option {
	return func(p *PollEnricher) {
		p.expression = expression
	}
}

// WithAggregationStrategy sets the aggregation strategy, taking precedence over the configuration.
func WithAggregationStrategy(strategy types.AggregationStrategy) Option {
	return func(p *PollEnricher) {
		p.Config.AggregationStrategy = strategy
	}
}

// PollEnricher 轮询富化处理器
// PollEnricher enriches an exchange with a resource polled from an endpoint computed per
// exchange. Consumers are lent by a pool.ConsumerCache and always given back after the poll.
// Process completes synchronously and invokes its callback exactly once.
type PollEnricher struct {
	base.ServiceSupport
	Config Config

	id       string
	routeId  string
	config   types.Config
	logger   types.Logger
	preCheck func(exchange *types.Exchange) error

	expression   types.Expression
	strategy     types.AggregationStrategy
	cache        *pool.ConsumerCache
	scheme       string
	dynamicAware types.PollDynamicAware

	metrics   *metrics.EnricherMetrics
	collector prometheus.Collector
}

// New creates a poll enricher from a map based configuration.
// config must carry an EndpointRegistry.
func New(config types.Config, configuration types.Configuration, opts ...Option) (*PollEnricher, error) {
	c := DefaultConfig()
	if configuration != nil {
		if err := maps.Map2Struct(configuration, &c); err != nil {
			return nil, err
		}
	}
	return NewWithConfig(config, c, opts...), nil
}

// NewWithConfig creates a poll enricher from a typed configuration.
func NewWithConfig(config types.Config, c Config, opts ...Option) *PollEnricher {
	p := &PollEnricher{
		Config:  c,
		config:  config,
		metrics: metrics.NewEnricherMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.id == "" {
		p.id = fmt.Sprintf("pollEnrich%d", atomic.AddInt64(&enricherSeq, 1))
	}
	p.logger = config.Logger
	if p.logger == nil {
		p.logger = types.DefaultLogger()
	}
	if p.config.HeadersFactory == nil {
		p.config.HeadersFactory = types.DefaultHeadersFactory
	}
	p.SetHooks(base.Hooks{
		Build:    p.doBuild,
		Init:     p.doInit,
		Start:    p.doStart,
		Stop:     p.doStop,
		Shutdown: p.doShutdown,
	})
	return p
}

func (p *PollEnricher) Id() string {
	return p.id
}

func (p *PollEnricher) RouteId() string {
	return p.routeId
}

// Uri returns the configured target: the static uri or the dynamic expression text.
func (p *PollEnricher) Uri() string {
	if p.Config.Uri != "" {
		return p.Config.Uri
	}
	return p.Config.DynamicExpression
}

func (p *PollEnricher) Expression() types.Expression {
	return p.expression
}

func (p *PollEnricher) AggregationStrategy() types.AggregationStrategy {
	return p.strategy
}

// Cache returns the consumer cache, nil before Build.
func (p *PollEnricher) Cache() *pool.ConsumerCache {
	return p.cache
}

// Scheme returns the scheme detected from the configured target, "" when it is not known upfront.
func (p *PollEnricher) Scheme() string {
	return p.scheme
}

// DynamicAware returns the optimizer detected at Init, nil if none.
func (p *PollEnricher) DynamicAware() types.PollDynamicAware {
	return p.dynamicAware
}

func (p *PollEnricher) Metrics() *metrics.EnricherMetrics {
	return p.metrics
}

func (p *PollEnricher) String() string {
	return p.id
}

func (p *PollEnricher) doBuild() error {
	if p.config.EndpointRegistry == nil {
		return errors.New("poll enricher requires an endpoint registry")
	}
	if p.expression == nil {
		switch {
		case strings.TrimSpace(p.Config.DynamicExpression) != "":
			expression, err := el.NewExpression(p.Config.DynamicExpression, p.Config.ExpressionLanguage)
			if err != nil {
				return fmt.Errorf("invalid dynamicExpression: %w", err)
			}
			p.expression = expression
		case strings.TrimSpace(p.Config.Uri) != "":
			p.expression = el.Constant(p.Config.Uri)
		default:
			return errors.New("dynamicExpression or uri is required")
		}
	}
	strategy, err := resolveStrategy(p.Config.AggregationStrategy)
	if err != nil {
		return err
	}
	p.strategy = strategy
	p.cache = pool.NewConsumerCache(p.id, p.Config.PoolCapacity, p.config)
	if p.logger.IsDebugEnabled() {
		p.logger.Debugf("PollEnrich %s using ConsumerCache with capacity=%d", p.id, p.Config.PoolCapacity)
	}
	return base.BuildService(p.cache, p.strategy)
}

func (p *PollEnricher) doInit() error {
	target := p.Uri()
	if target != "" {
		if p.config.Properties != nil {
			if resolved, err := p.config.Properties.Resolve(target); err == nil {
				target = resolved
			}
		}
		p.scheme = uri.Scheme(target)
	}
	if p.Config.AllowOptimization && p.scheme != "" && p.config.DynamicAwareResolver != nil {
		p.dynamicAware = p.resolveDynamicAware(p.scheme)
		if p.dynamicAware != nil && p.logger.IsDebugEnabled() {
			p.logger.Debugf("Detected PollDynamicAware component: %s optimising poll: %s", p.scheme, uri.Sanitize(target))
		}
	}
	return base.InitService(p.cache, p.strategy, p.dynamicAware)
}

// resolveDynamicAware looks up the optimizer of scheme, falling back to the default scheme
// of the owning component when scheme is an alias.
func (p *PollEnricher) resolveDynamicAware(scheme string) types.PollDynamicAware {
	resolver := p.config.DynamicAwareResolver
	if da, ok := resolver.Resolve(scheme); ok {
		return da
	}
	component, ok := p.config.EndpointRegistry.GetComponent(scheme, p.Config.AutoStartDependency)
	if !ok {
		return nil
	}
	defaultScheme := strings.ToLower(component.Scheme())
	if defaultScheme == scheme {
		return nil
	}
	da, ok := resolver.Resolve(defaultScheme)
	if !ok {
		return nil
	}
	da.SetScheme(scheme)
	return da
}

func (p *PollEnricher) doStart() error {
	if p.Config.AutoStartDependency && p.scheme != "" {
		if _, ok := p.config.EndpointRegistry.GetComponent(p.scheme, true); !ok && p.logger.IsDebugEnabled() {
			p.logger.Debugf("no component found for scheme %s", p.scheme)
		}
	}
	if err := base.StartService(p.cache, p.strategy, p.dynamicAware); err != nil {
		return err
	}
	if p.config.Registerer != nil {
		collector := metrics.NewEnricherCollector(p.id, p.metrics)
		if err := p.config.Registerer.Register(collector); err != nil {
			p.logger.Warnf("cannot register poll enricher metrics %s: %v", p.id, err)
		} else {
			p.collector = collector
		}
	}
	return nil
}

func (p *PollEnricher) doStop() error {
	if p.collector != nil {
		p.config.Registerer.Unregister(p.collector)
		p.collector = nil
	}
	return base.StopService(p.strategy, p.cache, p.dynamicAware)
}

func (p *PollEnricher) doShutdown() error {
	return base.StopAndShutdownService(p.strategy, p.cache)
}

// Process polls the target of exchange and aggregates the result into it.
// callback.Done(true) is invoked exactly once and Process always returns true.
func (p *PollEnricher) Process(exchange *types.Exchange, callback types.AsyncCallback) bool {
	var once sync.Once
	done := func() {
		once.Do(func() {
			if callback != nil {
				callback.Done(true)
			}
		})
	}
	defer done()

	p.metrics.IncrementCurrent()
	p.metrics.IncrementTotal()
	defer p.metrics.DecrementCurrent()

	if !p.IsStarted() {
		exchange.SetErr(fmt.Errorf("poll enricher %s is not started: %w", p.id, types.ErrServiceStopped))
		p.metrics.IncrementFailed()
		return true
	}
	skipped := p.process(exchange)
	switch {
	case exchange.IsFailed():
		p.metrics.IncrementFailed()
	case skipped:
		p.metrics.IncrementSkipped()
	default:
		p.metrics.IncrementSuccess()
	}
	return true
}

// ProcessAsync runs Process on the configured pool, or on a new goroutine when there is none.
// It returns false as the exchange completes asynchronously. When the pool rejects the task
// the exchange fails and the callback is invoked on the calling goroutine.
func (p *PollEnricher) ProcessAsync(exchange *types.Exchange, callback types.AsyncCallback) bool {
	task := func() {
		p.Process(exchange, types.AsyncCallbackFunc(func(bool) {
			if callback != nil {
				callback.Done(false)
			}
		}))
	}
	if p.config.Pool == nil {
		go task()
		return false
	}
	if err := p.config.Pool.Submit(task); err != nil {
		exchange.SetErr(fmt.Errorf("poll enricher %s cannot submit the exchange: %w", p.id, err))
		if callback != nil {
			callback.Done(true)
		}
		return true
	}
	return false
}

// process runs one enrichment. It reports whether the exchange was skipped because the target
// was nothing or invalid and ignored. Failures are recorded on the exchange.
func (p *PollEnricher) process(exchange *types.Exchange) (skipped bool) {
	stage := types.ErrPreCheck
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("PollEnrich %s panic: %v\n%s", p.id, r, runtime.Stack())
			exchange.SetErr(types.NewExchangeError(stage, exchange, "panic during poll enrich", fmt.Errorf("%v", r)))
			skipped = false
		}
	}()
	if p.preCheck != nil {
		if err := p.preCheck(exchange); err != nil {
			exchange.SetErr(types.NewExchangeError(types.ErrPreCheck, exchange, "error during pre poll check", err))
			return false
		}
	}

	stage = types.ErrEvaluation
	recipient, endpoint, err := p.resolveEndpoint(exchange)
	if err == nil && endpoint == nil {
		if p.logger.IsDebugEnabled() {
			p.logger.Debugf("poll dynamic evaluated as nil so cannot poll from any endpoint")
		}
		return true
	}
	var consumer types.PollingConsumer
	if err == nil {
		stage = types.ErrAcquisition
		consumer, err = p.cache.Acquire(endpoint)
		if err != nil {
			p.releasePrototype(endpoint)
			err = types.NewExchangeError(types.ErrAcquisition, exchange,
				"cannot acquire polling consumer for "+uri.Sanitize(endpoint.URI()), err)
		}
	}
	if err != nil {
		if p.Config.IgnoreInvalidTarget {
			if p.logger.IsDebugEnabled() {
				p.logger.Debugf("endpoint uri is invalid: %v. This error will be ignored. %v", recipient, err)
			}
			return true
		}
		exchange.SetErr(err)
		return false
	}

	stage = types.ErrPoll
	caps := consumer.Capabilities()
	redelivery := captureRedeliveryHeaders(exchange)
	resource, err := p.poll(endpoint, consumer, caps, exchange)
	if err != nil {
		exchange.SetErr(types.NewExchangeError(types.ErrPoll, exchange, "error during poll", err))
		return false
	}
	stage = types.ErrAggregation
	if err := p.aggregate(exchange, resource, caps, redelivery, consumer.Endpoint().URI()); err != nil {
		exchange.SetErr(types.NewExchangeError(types.ErrAggregation, exchange, "error occurred during aggregation", err))
	}
	return false
}

// releasePrototype stops an endpoint created for this exchange only.
func (p *PollEnricher) releasePrototype(endpoint types.Endpoint) {
	if endpoint.Scope() != types.ScopePrototype {
		return
	}
	if err := base.StopAndShutdownService(endpoint); err != nil {
		p.logger.Warnf("error shutting down prototype endpoint %s: %v", uri.Sanitize(endpoint.URI()), err)
	}
}

// resolveEndpoint evaluates the target of exchange and returns its endpoint.
// A nil endpoint with a nil error means there is nothing to poll.
func (p *PollEnricher) resolveEndpoint(exchange *types.Exchange) (interface{}, types.Endpoint, error) {
	recipient, err := p.expression.Evaluate(exchange)
	if err != nil {
		return nil, nil, types.NewExchangeError(types.ErrEvaluation, exchange, "cannot evaluate poll target", err)
	}
	if recipient == nil {
		return nil, nil, nil
	}
	target := recipient
	if p.dynamicAware != nil {
		if staticUri := p.optimize(exchange, recipient); staticUri != "" {
			target = staticUri
		}
	}
	// an endpoint given by the expression is used as it is
	if e, ok := target.(types.Endpoint); ok {
		return recipient, e, nil
	}
	rawUri, err := p.resolveUri(target)
	if err != nil {
		return recipient, nil, types.NewExchangeError(types.ErrResolution, exchange, "cannot resolve poll target", err)
	}
	var e types.Endpoint
	if p.Config.PoolCapacity <= 0 {
		e, err = p.config.EndpointRegistry.GetPrototypeEndpoint(rawUri)
	} else {
		e, err = p.config.EndpointRegistry.GetEndpoint(rawUri)
	}
	if err != nil {
		return recipient, nil, types.NewExchangeError(types.ErrResolution, exchange,
			"cannot resolve endpoint "+uri.Sanitize(rawUri), err)
	}
	return recipient, e, nil
}

// resolveUri converts a target into an uri and expands its property placeholders.
func (p *PollEnricher) resolveUri(target interface{}) (string, error) {
	var raw string
	switch v := target.(type) {
	case string:
		raw = strings.TrimSpace(v)
	case types.Endpoint:
		raw = v.Key()
	default:
		s, err := str.ToStringMaybeErr(target)
		if err != nil {
			return "", fmt.Errorf("%w from %T: %v", types.ErrNoTypeConversion, target, err)
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		return "", errors.New("empty endpoint uri")
	}
	if p.config.Properties != nil && strings.Contains(raw, types.PlaceholderPrefix) {
		resolved, err := p.config.Properties.Resolve(raw)
		if err != nil {
			return "", err
		}
		raw = resolved
	}
	return raw, nil
}

// optimize asks the optimizer for a static form of the evaluated target.
// It returns "" when the target cannot be optimised. Errors are logged and ignored.
func (p *PollEnricher) optimize(exchange *types.Exchange, recipient interface{}) string {
	rawUri, err := p.resolveUri(recipient)
	if err != nil {
		return ""
	}
	if uri.Scheme(rawUri) != strings.ToLower(p.dynamicAware.Scheme()) {
		return ""
	}
	entry, err := p.dynamicAware.Prepare(exchange, rawUri, p.Uri())
	if err == nil && entry != nil {
		var staticUri string
		staticUri, err = p.dynamicAware.ResolveStaticUri(exchange, entry)
		if err == nil {
			if staticUri != "" && p.logger.IsDebugEnabled() {
				p.logger.Debugf("Optimising poll via PollDynamicAware component: %s to use static uri: %s",
					p.dynamicAware.Scheme(), uri.Sanitize(staticUri))
			}
			return staticUri
		}
	}
	if err != nil && p.logger.IsDebugEnabled() {
		p.logger.Debugf("cannot optimise poll uri %s: %v. This error is ignored", uri.Sanitize(rawUri), err)
	}
	return ""
}

// poll receives from consumer and gives it back to the cache whatever the outcome.
func (p *PollEnricher) poll(endpoint types.Endpoint, consumer types.PollingConsumer, caps types.ConsumerCapabilities,
	exchange *types.Exchange) (*types.Exchange, error) {
	defer p.cache.Release(endpoint, consumer)
	resource, err := receive(consumer, caps, exchange, p.Config.TimeoutMillis, p.logger)
	if err != nil {
		return nil, err
	}
	if p.logger.IsDebugEnabled() {
		if resource == nil {
			p.logger.Debugf("consumer received no exchange")
		} else {
			p.logger.Debugf("consumer received: %s", resource.Id())
		}
	}
	return resource, nil
}

// aggregate merges resource, which may be nil, into exchange.
func (p *PollEnricher) aggregate(exchange, resource *types.Exchange, caps types.ConsumerCapabilities,
	redelivery redeliveryHeaders, endpointUri string) error {
	// the failure of the resource survives aggregation when it is aggregated or bridged
	var cause error
	if resource != nil && resource.IsFailed() && (p.Config.AggregateOnException || caps.BridgeErrorHandler) {
		cause = resource.Err()
	}

	variable := p.Config.ReceiveIntoVariable
	var originalBody interface{}
	var originalHeaders map[string]interface{}
	if variable != "" {
		msg := exchange.Message()
		originalBody = msg.Body
		originalHeaders = p.config.HeadersFactory.NewMap(msg.Headers)
	}

	if !p.Config.AggregateOnException && resource != nil && resource.IsFailed() {
		copyResultsPreservePattern(exchange, resource)
		discardResource(exchange, resource, nil)
	} else {
		prepareResult(exchange)
		prepareAggregation(exchange, resource)
		aggregated, err := p.invokeStrategy(exchange, resource)
		if err != nil {
			discardResource(exchange, resource, err)
			return err
		}
		if aggregated == nil {
			discardResource(exchange, resource, errors.New("aggregation strategy returned no exchange"))
		} else {
			if ShouldSetVariableResult(aggregated, variable) {
				msg := aggregated.Message()
				setVariableFromMessage(aggregated, variable, msg, p.config.HeadersFactory)
				msg.Body = originalBody
				msg.SetHeaders(originalHeaders)
			}
			copyResultsPreservePattern(exchange, aggregated)
			if aggregated != exchange {
				for k, v := range aggregated.Variables() {
					exchange.SetVariable(k, v)
				}
			}
			if resource != nil {
				resource.HandoverCompletions(exchange)
			}
		}
	}

	if cause != nil {
		exchange.SetErr(cause)
		// keep redelivery possible for the outer error handler
		exchange.SetRedeliveryExhausted(false)
		redelivery.apply(exchange.Message())
	}
	exchange.SetProperty(types.PropertyToEndpoint, endpointUri)
	return nil
}

// discardResource runs the pending completions of a resource whose content was not merged
// into exchange. They run as failed so that the resource can be rolled back.
func discardResource(exchange, resource *types.Exchange, cause error) {
	if resource == nil || resource == exchange {
		return
	}
	if !resource.IsFailed() {
		resource.SetErr(cause)
	}
	resource.RunCompletions()
}

func (p *PollEnricher) invokeStrategy(original, resource *types.Exchange) (result *types.Exchange, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("PollEnrich %s aggregation strategy panic: %v\n%s", p.id, r, runtime.Stack())
			err = fmt.Errorf("aggregation strategy panic: %v", r)
		}
	}()
	return p.strategy.Aggregate(original, resource)
}
