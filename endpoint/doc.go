/*
 * Copyright 2023 The RuleGo Authors.
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

// Package endpoint resolves uris into endpoints.
//
// ComponentRegistry maps schemes, and their aliases, to connector components.
// Pool implements types.EndpointRegistry: it creates, starts and caches pooled endpoints
// by normalized uri and creates prototype endpoints that are never cached.
// DynamicAwareTable is the scheme to optimizer lookup table used by the poll enricher.
//
// Package endpoint 把uri解析为端点。
//
// Built-in components / 内置组件：
//
//   - memory: in process queues (components/memory)  进程内队列
//   - file: files of a directory (components/file)  目录中的文件
//   - redis: redis lists (components/redis)  redis列表
//   - kafka: kafka topics (components/kafka)  kafka主题
//   - amqp, rabbitmq: amqp queues (components/amqp)  amqp队列
//   - nats: nats subjects (components/nats)  nats主题
//   - mqtt: mqtt subscriptions (components/mqtt)  mqtt订阅
//   - sqs: aws sqs queues (components/sqs)  aws sqs队列
//   - sql: database rows (components/sql)  数据库记录
//   - timer: cron schedules (components/timer)  cron定时器
//   - http, https: http resources (components/http)  http资源
//
// Register a custom component:
//
//	_ = endpoint.Registry.Register(&MyComponent{}, "my-alias")
package endpoint
