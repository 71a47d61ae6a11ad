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

// Package pollenrich enriches exchanges with resources polled from endpoints computed per
// exchange.
//
// # Usage
//
// Configure an enricher with a static uri or a dynamic expression. Every connector is a
// component registered by scheme: memory, file, redis, kafka, amqp, nats, mqtt, sqs, sql,
// timer and http.
//
//	config := pollenrich.NewConfig(types.WithLogger(types.NopLogger()))
//	enricher, err := pollenrich.New("orders", config, types.Configuration{
//		"dynamicExpression": "file:inbox?fileName=${header.name}",
//		"timeoutMillis":     1000,
//	})
//
// Enrich an exchange
//
//	exchange := types.NewExchangeWithBody(types.InOnly, "", map[string]interface{}{"name": "a.txt"})
//	enricher.Process(exchange, types.AsyncCallbackFunc(func(doneSync bool) {}))
//
// Load enrichers from a configuration file in any format viper reads
//
//	err := pollenrich.Load("./enrichers.yaml", config)
//
// with the content
//
//	enrichers:
//	  - id: orders
//	    uri: "redis:127.0.0.1:6379/orders"
//	    timeoutMillis: 500
//
// Get an enricher instance
//
//	enricher, ok := pollenrich.Get("orders")
package pollenrich

import (
	"fmt"
	"sync"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/endpoint"
	"github.com/rulego/pollenrich/processor"
	"github.com/rulego/pollenrich/utils/pool"
	"github.com/rulego/pollenrich/utils/properties"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// KeyEnrichers is the configuration file key holding the list of enrichers.
const KeyEnrichers = "enrichers"

var DefaultPollEnrich = &PollEnrich{}

// NewConfig creates a configuration with every collaborator of an enricher: an endpoint pool
// over the default component registry, a viper backed properties resolver reading
// environment variables, the optimizer table and a worker pool for ProcessAsync.
// opts override the defaults.
func NewConfig(opts ...types.Option) types.Config {
	defaults := []types.Option{
		types.WithProperties(properties.New(nil)),
		types.WithDynamicAwareResolver(endpoint.NewDynamicAwareTable(nil)),
		types.WithPool(pool.NewWorkerPool(0)),
	}
	config := types.NewConfig(append(defaults, opts...)...)
	if config.EndpointRegistry == nil {
		config.EndpointRegistry = endpoint.NewPool(config, nil)
	}
	return config
}

// PollEnrich 轮询富化处理器实例池
type PollEnrich struct {
	enrichers sync.Map
}

// Load 从配置文件加载所有富化处理器，配置文件格式见包文档
func (g *PollEnrich) Load(path string, config types.Config, opts ...processor.Option) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	items, err := cast.ToSliceE(v.Get(KeyEnrichers))
	if err != nil {
		return fmt.Errorf("invalid %s in %s: %w", KeyEnrichers, path, err)
	}
	for _, item := range items {
		configuration, err := cast.ToStringMapE(item)
		if err != nil {
			return fmt.Errorf("invalid enricher in %s: %w", path, err)
		}
		id := cast.ToString(configuration["id"])
		delete(configuration, "id")
		if _, err := g.New(id, config, configuration, opts...); err != nil {
			return fmt.Errorf("cannot create enricher %s: %w", id, err)
		}
	}
	return nil
}

// New 创建并启动一个富化处理器，存储在实例池中
// 如果已经存在相同id的实例，则直接返回该实例。id="" 时不存储
func (g *PollEnrich) New(id string, config types.Config, configuration types.Configuration, opts ...processor.Option) (*processor.PollEnricher, error) {
	if id != "" {
		if v, ok := g.enrichers.Load(id); ok {
			return v.(*processor.PollEnricher), nil
		}
		opts = append(opts, processor.WithId(id))
	}
	enricher, err := processor.New(config, configuration, opts...)
	if err != nil {
		return nil, err
	}
	if err := enricher.Start(); err != nil {
		_ = enricher.Shutdown()
		return nil, err
	}
	if id != "" {
		if v, loaded := g.enrichers.LoadOrStore(id, enricher); loaded {
			_ = enricher.Shutdown()
			return v.(*processor.PollEnricher), nil
		}
	}
	return enricher, nil
}

// Get 获取指定ID富化处理器实例
func (g *PollEnrich) Get(id string) (*processor.PollEnricher, bool) {
	if v, ok := g.enrichers.Load(id); ok {
		return v.(*processor.PollEnricher), true
	}
	return nil, false
}

// Del 关闭并删除指定ID富化处理器实例
func (g *PollEnrich) Del(id string) {
	if v, ok := g.enrichers.LoadAndDelete(id); ok {
		_ = v.(*processor.PollEnricher).Shutdown()
	}
}

// Stop 关闭所有富化处理器实例
func (g *PollEnrich) Stop() {
	g.enrichers.Range(func(key, value any) bool {
		_ = value.(*processor.PollEnricher).Shutdown()
		g.enrichers.Delete(key)
		return true
	})
}

// Load 从配置文件加载所有富化处理器到默认实例池
func Load(path string, config types.Config, opts ...processor.Option) error {
	return DefaultPollEnrich.Load(path, config, opts...)
}

// New 创建一个富化处理器并存储在默认实例池中
func New(id string, config types.Config, configuration types.Configuration, opts ...processor.Option) (*processor.PollEnricher, error) {
	return DefaultPollEnrich.New(id, config, configuration, opts...)
}

// Get 获取指定ID富化处理器实例
func Get(id string) (*processor.PollEnricher, bool) {
	return DefaultPollEnrich.Get(id)
}

// Del 删除指定ID富化处理器实例
func Del(id string) {
	DefaultPollEnrich.Del(id)
}

// Stop 关闭所有富化处理器实例
func Stop() {
	DefaultPollEnrich.Stop()
}
